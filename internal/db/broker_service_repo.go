package db

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/ToFood/tofood-zip/internal/types"
)

// BrokerServiceRepository reads the operator-managed notification_services
// table. Rows are maintained outside this service; it never writes them.
type BrokerServiceRepository struct {
	db DBTX
}

// NewBrokerServiceRepository creates a new BrokerServiceRepository.
func NewBrokerServiceRepository(db DBTX) *BrokerServiceRepository {
	return &BrokerServiceRepository{db: db}
}

const brokerServiceColumns = `id, name, broker_kind, channel_type, is_active,
	api_key, api_secret, api_endpoint, request_type, request_headers,
	min_milliseconds_between_sends, ignore_transport_security,
	should_sign_email, sender_name, sender_address, reply_to, bcc, title,
	text, template_text`

// GetActiveForChannel returns the lowest-id active config for channel.
// Returns not_found_broker_service when the channel has none.
func (r *BrokerServiceRepository) GetActiveForChannel(ctx context.Context, channel types.ChannelType) (*types.BrokerServiceConfig, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+brokerServiceColumns+`
		 FROM notification_services
		 WHERE channel_type = $1 AND is_active
		 ORDER BY id
		 LIMIT 1`,
		int(channel),
	)
	cfg, err := scanBrokerService(row)
	if err != nil {
		if isNoRows(err) {
			return nil, types.NewAppError(types.ErrCodeNotFoundBroker, "no active broker service for channel", nil).
				WithDetails(map[string]any{"channel_type": channel.String()})
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get active broker service", err)
	}
	return cfg, nil
}

// GetByID returns the config with the given id regardless of is_active.
func (r *BrokerServiceRepository) GetByID(ctx context.Context, id int64) (*types.BrokerServiceConfig, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+brokerServiceColumns+` FROM notification_services WHERE id = $1`,
		id,
	)
	cfg, err := scanBrokerService(row)
	if err != nil {
		if isNoRows(err) {
			return nil, types.NewAppError(types.ErrCodeNotFoundBroker, "broker service not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get broker service", err)
	}
	return cfg, nil
}

func scanBrokerService(row pgx.Row) (*types.BrokerServiceConfig, error) {
	var (
		c                                   types.BrokerServiceConfig
		kind, channel                       int
		apiKey, apiSecret, endpoint         *string
		requestType, requestHeaders         *string
		senderName, senderAddress           *string
		replyTo, bcc, title, text, template *string
	)
	err := row.Scan(
		&c.ID,
		&c.Name,
		&kind,
		&channel,
		&c.Active,
		&apiKey,
		&apiSecret,
		&endpoint,
		&requestType,
		&requestHeaders,
		&c.MinMillisecondsBetweenSends,
		&c.IgnoreTransportSecurity,
		&c.ShouldSignEmail,
		&senderName,
		&senderAddress,
		&replyTo,
		&bcc,
		&title,
		&text,
		&template,
	)
	if err != nil {
		return nil, err
	}
	c.Kind = types.BrokerKind(kind)
	c.Channel = types.ChannelType(channel)
	c.APIKey = types.SecretString(derefString(apiKey))
	c.APISecret = types.SecretString(derefString(apiSecret))
	c.APIEndpoint = derefString(endpoint)
	c.RequestType = derefString(requestType)
	c.RequestHeaders = derefString(requestHeaders)
	c.SenderName = derefString(senderName)
	c.SenderAddress = derefString(senderAddress)
	c.ReplyTo = derefString(replyTo)
	c.Bcc = derefString(bcc)
	c.Title = derefString(title)
	c.Text = derefString(text)
	c.TemplateText = derefString(template)
	return &c, nil
}
