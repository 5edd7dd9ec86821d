package types

import "fmt"

// NotificationStatus is the persisted lifecycle state of a notification.
// Integer values are stored in the notifications.status column and must not
// be renumbered.
type NotificationStatus int

const (
	StatusWaitingToBeSent NotificationStatus = 1
	StatusSuccess         NotificationStatus = 2
	StatusError           NotificationStatus = 3
	StatusNoValidContacts NotificationStatus = 4
	StatusNotSent         NotificationStatus = 5

	// StatusProcessing marks a row claimed by a dispatcher. It is transient:
	// the claimant moves it to a terminal state or the reaper releases it.
	StatusProcessing NotificationStatus = 6
)

var statusNames = map[NotificationStatus]string{
	StatusWaitingToBeSent: "waiting_to_be_sent",
	StatusSuccess:         "success",
	StatusError:           "error",
	StatusNoValidContacts: "no_valid_contacts",
	StatusNotSent:         "not_sent",
	StatusProcessing:      "processing",
}

func (s NotificationStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// IsTerminal reports whether automated dispatch never moves the record
// out of this state.
func (s NotificationStatus) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusError, StatusNoValidContacts, StatusNotSent:
		return true
	}
	return false
}

// ChannelType identifies the delivery medium of a notification.
type ChannelType int

const (
	ChannelDefault  ChannelType = 0
	ChannelEmail    ChannelType = 1
	ChannelSMS      ChannelType = 2
	ChannelWhatsApp ChannelType = 3
)

func (c ChannelType) String() string {
	switch c {
	case ChannelDefault:
		return "default"
	case ChannelEmail:
		return "email"
	case ChannelSMS:
		return "sms"
	case ChannelWhatsApp:
		return "whatsapp"
	}
	return fmt.Sprintf("channel(%d)", int(c))
}

// Valid reports whether c is one of the declared channels.
func (c ChannelType) Valid() bool {
	return c >= ChannelDefault && c <= ChannelWhatsApp
}

// BrokerKind is the closed set of delivery integrations a broker service
// configuration may point at. Only a few have a sender registered; the rest
// resolve to "integration not found" at dispatch.
type BrokerKind int

const (
	BrokerDisparoPro           BrokerKind = 1
	BrokerVoaMvno              BrokerKind = 2
	BrokerZenvia               BrokerKind = 3
	BrokerNeWave               BrokerKind = 4
	BrokerEvotrix              BrokerKind = 5
	BrokerSmtp                 BrokerKind = 6
	BrokerSmtpInsecure         BrokerKind = 7
	BrokerVolare               BrokerKind = 8
	BrokerFacilita             BrokerKind = 9
	BrokerEai                  BrokerKind = 10
	BrokerAws                  BrokerKind = 11
	BrokerSmsGestor            BrokerKind = 12
	BrokerHotMobile            BrokerKind = 13
	BrokerZapisp               BrokerKind = 14
	BrokerChatmix              BrokerKind = 15
	BrokerTwilio               BrokerKind = 16
	BrokerDirectCall           BrokerKind = 17
	BrokerGupshup              BrokerKind = 18
	BrokerAlertZ               BrokerKind = 19
	BrokerMegaDedicados        BrokerKind = 20
	BrokerSmsSolution          BrokerKind = 21
	BrokerSuperWay             BrokerKind = 22
	BrokerMatrix               BrokerKind = 23
	BrokerJames                BrokerKind = 24
	BrokerKingSms              BrokerKind = 25
	BrokerDialog360            BrokerKind = 26
	BrokerConesul              BrokerKind = 27
	BrokerPro7                 BrokerKind = 28
	BrokerSzChat               BrokerKind = 29
	BrokerChat2Desk            BrokerKind = 30
	BrokerSuperWhats           BrokerKind = 31
	BrokerZenviaV2             BrokerKind = 32
	BrokerCapitalMidia         BrokerKind = 33
	BrokerSocialHub            BrokerKind = 34
	BrokerIungo                BrokerKind = 35
	BrokerSinch                BrokerKind = 36
	BrokerBlip                 BrokerKind = 37
	BrokerFirebaseNotification BrokerKind = 38
	BrokerIDSolucoes           BrokerKind = 39
	BrokerSeteAzWhatsApp       BrokerKind = 40
	BrokerSendGridEmailAPI     BrokerKind = 41
	BrokerGenericService       BrokerKind = 42
	BrokerZeus                 BrokerKind = 43
	BrokerZenviaWhatsApp       BrokerKind = 44
	BrokerTip                  BrokerKind = 45
	BrokerSummit               BrokerKind = 46
	BrokerAloChat              BrokerKind = 47
	BrokerDroyds               BrokerKind = 48
	BrokerYupChat              BrokerKind = 49
	BrokerInfobip              BrokerKind = 50
	BrokerMatrixV2             BrokerKind = 51
	BrokerDialog360V2          BrokerKind = 52
	BrokerVoanet               BrokerKind = 53
	BrokerChatmixV2            BrokerKind = 54
	BrokerZendesk              BrokerKind = 55
	BrokerPaula                BrokerKind = 56
	BrokerMatrixPay            BrokerKind = 57
	BrokerInfobipSms           BrokerKind = 58
)

var brokerNames = map[BrokerKind]string{
	BrokerDisparoPro:           "Disparo Pro",
	BrokerVoaMvno:              "Voa (MVNO)",
	BrokerZenvia:               "Zenvia",
	BrokerNeWave:               "NeWave",
	BrokerEvotrix:              "Evotrix",
	BrokerSmtp:                 "SMTP",
	BrokerSmtpInsecure:         "SMTP (insecure)",
	BrokerVolare:               "Volare",
	BrokerFacilita:             "Facilita",
	BrokerEai:                  "Eai",
	BrokerAws:                  "AWS",
	BrokerSmsGestor:            "SMS Gestor",
	BrokerHotMobile:            "HotMobile",
	BrokerZapisp:               "Zapisp",
	BrokerChatmix:              "Chatmix",
	BrokerTwilio:               "Twilio",
	BrokerDirectCall:           "DirectCall",
	BrokerGupshup:              "Gupshup",
	BrokerAlertZ:               "AlertZ (MMCenter)",
	BrokerMegaDedicados:        "MegaDedicados",
	BrokerSmsSolution:          "SMS Solution",
	BrokerSuperWay:             "Super Way",
	BrokerMatrix:               "Matrix",
	BrokerJames:                "James",
	BrokerKingSms:              "KingSms",
	BrokerDialog360:            "360 Dialog",
	BrokerConesul:              "Rede Conesul (MVNO)",
	BrokerPro7:                 "7Pro",
	BrokerSzChat:               "SzChat",
	BrokerChat2Desk:            "Chat2Desk",
	BrokerSuperWhats:           "SuperWhats",
	BrokerZenviaV2:             "ZenviaV2",
	BrokerCapitalMidia:         "Capital Midia",
	BrokerSocialHub:            "Social Hub",
	BrokerIungo:                "Iungo",
	BrokerSinch:                "Sinch",
	BrokerBlip:                 "Blip",
	BrokerFirebaseNotification: "FirebaseNotification",
	BrokerIDSolucoes:           "ID Solucoes Web",
	BrokerSeteAzWhatsApp:       "7AZ WhatsApp",
	BrokerSendGridEmailAPI:     "SendGrid Email API",
	BrokerGenericService:       "Generic Service",
	BrokerZeus:                 "Zeus",
	BrokerZenviaWhatsApp:       "Zenvia WhatsApp",
	BrokerTip:                  "Tip",
	BrokerSummit:               "Summit",
	BrokerAloChat:              "AloChat",
	BrokerDroyds:               "Droyds",
	BrokerYupChat:              "YupChat",
	BrokerInfobip:              "Infobip",
	BrokerMatrixV2:             "MatrixV2",
	BrokerDialog360V2:          "360V2",
	BrokerVoanet:               "Voanet",
	BrokerChatmixV2:            "ChatmixV2",
	BrokerZendesk:              "Zendesk",
	BrokerPaula:                "Paula",
	BrokerMatrixPay:            "MatrixPay",
	BrokerInfobipSms:           "InfobipSms",
}

// String returns the display name of the integration.
func (k BrokerKind) String() string {
	if name, ok := brokerNames[k]; ok {
		return name
	}
	return fmt.Sprintf("broker(%d)", int(k))
}

// Known reports whether k is a declared integration.
func (k BrokerKind) Known() bool {
	_, ok := brokerNames[k]
	return ok
}

// AllBrokerKinds returns every declared integration in ascending order.
func AllBrokerKinds() []BrokerKind {
	kinds := make([]BrokerKind, 0, len(brokerNames))
	for k := BrokerDisparoPro; k <= BrokerInfobipSms; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}
