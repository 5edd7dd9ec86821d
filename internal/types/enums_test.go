package types

import "testing"

func TestNotificationStatusTerminal(t *testing.T) {
	terminal := []NotificationStatus{StatusSuccess, StatusError, StatusNoValidContacts, StatusNotSent}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []NotificationStatus{StatusWaitingToBeSent, StatusProcessing} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestNotificationStatusValuesArePersisted(t *testing.T) {
	// These integers are stored in the database.
	if StatusWaitingToBeSent != 1 || StatusSuccess != 2 || StatusError != 3 ||
		StatusNoValidContacts != 4 || StatusNotSent != 5 || StatusProcessing != 6 {
		t.Fatal("notification status values changed")
	}
}

func TestBrokerKinds(t *testing.T) {
	kinds := AllBrokerKinds()
	if len(kinds) != 58 {
		t.Fatalf("len(AllBrokerKinds()) = %d, want 58", len(kinds))
	}
	for _, k := range kinds {
		if !k.Known() {
			t.Errorf("kind %d missing a display name", int(k))
		}
	}
	if BrokerSmtp.String() != "SMTP" {
		t.Errorf("BrokerSmtp.String() = %q", BrokerSmtp.String())
	}
	if BrokerKind(99).Known() {
		t.Error("BrokerKind(99) should be unknown")
	}
	if BrokerKind(99).String() != "broker(99)" {
		t.Errorf("unknown kind String() = %q", BrokerKind(99).String())
	}
}

func TestRecordDestination(t *testing.T) {
	r := &NotificationRecord{Channel: ChannelSMS, Recipient: "a@b.io", Phone: "+5511912345678"}
	if r.Destination() != "+5511912345678" {
		t.Errorf("sms destination = %q", r.Destination())
	}
	r.Channel = ChannelEmail
	if r.Destination() != "a@b.io" {
		t.Errorf("email destination = %q", r.Destination())
	}
}
