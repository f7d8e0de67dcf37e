package gateway

import "time"

// Settings holds one Stripe gateway configuration. A deployment may carry
// several (one per merchant account); documents reference them through the
// PaymentGateway registry below.
type Settings struct {
	ID                  int64     `gorm:"primaryKey"`
	GatewayName         string    `gorm:"column:gateway_name;not null;uniqueIndex"`
	PublishableKey      string    `gorm:"column:publishable_key"`
	SecretKey           string    `gorm:"column:secret_key"`
	RedirectURL         string    `gorm:"column:redirect_url"`
	HeaderImage         string    `gorm:"column:header_img"`
	EnableTokenization  bool      `gorm:"column:enable_tokenization;default:false"`
	SkipCredentialCheck bool      `gorm:"column:skip_credential_check;default:false"`
	CreatedAt           time.Time `gorm:"column:created_at;default:now()"`
	UpdatedAt           time.Time `gorm:"column:updated_at;default:now()"`
}

func (Settings) TableName() string {
	return "gateway_settings"
}

// PaymentGateway maps the gateway name a document references
// (e.g. "Stripe-Default") to the Settings row that controls it.
type PaymentGateway struct {
	ID                int64     `gorm:"primaryKey"`
	Name              string    `gorm:"column:name;not null;uniqueIndex"`
	GatewayController string    `gorm:"column:gateway_controller;not null"`
	CreatedAt         time.Time `gorm:"column:created_at;default:now()"`
}

func (PaymentGateway) TableName() string {
	return "payment_gateways"
}
