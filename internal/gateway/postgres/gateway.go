package postgres

import (
	errors "github.com/Emolus-Dev/payments/internal"
	gatewaymodel "github.com/Emolus-Dev/payments/internal/core/datamodel/gateway"
	gatewaypkg "github.com/Emolus-Dev/payments/internal/gateway"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SettingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) gatewaypkg.SettingsRepository {
	return &SettingsRepository{
		db: db,
	}
}

func (r *SettingsRepository) GetByName(name string) (*gatewaymodel.Settings, error) {
	var s gatewaymodel.Settings
	err := r.db.Where("gateway_name = ?", name).First(&s).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrGatewayNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *SettingsRepository) Save(settings *gatewaymodel.Settings) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "gateway_name"}},
		UpdateAll: true,
	}).Create(settings).Error
}

func (r *SettingsRepository) EnsureGateway(name, controller string) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&gatewaymodel.PaymentGateway{
		Name:              name,
		GatewayController: controller,
	}).Error
}

func (r *SettingsRepository) ControllerFor(gatewayName string) (string, error) {
	var pg gatewaymodel.PaymentGateway
	err := r.db.Where("name = ?", gatewayName).First(&pg).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", errors.ErrGatewayNotFound
		}
		return "", err
	}
	return pg.GatewayController, nil
}
