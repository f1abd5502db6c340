package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// BillingType é a forma serializada da cobrança de um módulo (coluna billing_type)
type BillingType string

const (
	BillingFixed               BillingType = "fixed"
	BillingPerVehicle          BillingType = "per_vehicle"
	BillingPerDriver           BillingType = "per_driver"
	BillingPerVehicleAndDriver BillingType = "per_vehicle_and_driver"
)

// ModuleBilling é a variante fechada de cobrança de um módulo.
// O método não exportado impede implementações fora deste pacote.
type ModuleBilling interface {
	Type() BillingType
	MonthlyCost(vehicles, drivers int) decimal.Decimal
	sealed()
}

// FixedBilling cobra um valor mensal fixo
type FixedBilling struct {
	Price decimal.Decimal
}

// PerVehicleBilling cobra por veículo
type PerVehicleBilling struct {
	Price decimal.Decimal
}

// PerDriverBilling cobra por motorista
type PerDriverBilling struct {
	Price decimal.Decimal
}

// PerVehicleAndDriverBilling cobra por veículo e por motorista
type PerVehicleAndDriverBilling struct {
	VehiclePrice decimal.Decimal
	DriverPrice  decimal.Decimal
}

func (FixedBilling) Type() BillingType               { return BillingFixed }
func (PerVehicleBilling) Type() BillingType          { return BillingPerVehicle }
func (PerDriverBilling) Type() BillingType           { return BillingPerDriver }
func (PerVehicleAndDriverBilling) Type() BillingType { return BillingPerVehicleAndDriver }

func (b FixedBilling) MonthlyCost(_, _ int) decimal.Decimal {
	return b.Price
}

func (b PerVehicleBilling) MonthlyCost(vehicles, _ int) decimal.Decimal {
	return b.Price.Mul(decimal.NewFromInt(int64(vehicles)))
}

func (b PerDriverBilling) MonthlyCost(_, drivers int) decimal.Decimal {
	return b.Price.Mul(decimal.NewFromInt(int64(drivers)))
}

func (b PerVehicleAndDriverBilling) MonthlyCost(vehicles, drivers int) decimal.Decimal {
	v := b.VehiclePrice.Mul(decimal.NewFromInt(int64(vehicles)))
	d := b.DriverPrice.Mul(decimal.NewFromInt(int64(drivers)))
	return v.Add(d)
}

func (FixedBilling) sealed()               {}
func (PerVehicleBilling) sealed()          {}
func (PerDriverBilling) sealed()           {}
func (PerVehicleAndDriverBilling) sealed() {}

// ParseModuleBilling reconstrói a variante a partir da forma guardada.
// vehiclePrice e driverPrice são usados conforme o tipo; fixed usa fixedPrice.
func ParseModuleBilling(t string, fixedPrice, vehiclePrice, driverPrice decimal.Decimal) (ModuleBilling, error) {
	switch BillingType(t) {
	case BillingFixed:
		return FixedBilling{Price: fixedPrice}, nil
	case BillingPerVehicle:
		return PerVehicleBilling{Price: vehiclePrice}, nil
	case BillingPerDriver:
		return PerDriverBilling{Price: driverPrice}, nil
	case BillingPerVehicleAndDriver:
		return PerVehicleAndDriverBilling{VehiclePrice: vehiclePrice, DriverPrice: driverPrice}, nil
	}
	return nil, fmt.Errorf("%w: tipo de cobrança %q desconhecido", ErrInvalidConfiguration, t)
}

// BillingPrices devolve os preços unitários (fixo, veículo, motorista) para persistência
func BillingPrices(b ModuleBilling) (fixed, vehicle, driver decimal.Decimal) {
	switch v := b.(type) {
	case FixedBilling:
		return v.Price, decimal.Zero, decimal.Zero
	case PerVehicleBilling:
		return decimal.Zero, v.Price, decimal.Zero
	case PerDriverBilling:
		return decimal.Zero, decimal.Zero, v.Price
	case PerVehicleAndDriverBilling:
		return decimal.Zero, v.VehiclePrice, v.DriverPrice
	}
	return decimal.Zero, decimal.Zero, decimal.Zero
}

// Module representa um módulo opcional que pode ser acrescentado a um plano
type Module struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Billing  ModuleBilling `json:"-"`
	IsActive bool          `json:"is_active"`
}
