package pricing

import "github.com/shopspring/decimal"

// DefaultIVARate é a taxa normal de IVA em Portugal continental
var DefaultIVARate = decimal.RequireFromString("0.23")

// Net converte um valor bruto (com IVA) em líquido
func Net(gross, rate decimal.Decimal) decimal.Decimal {
	return gross.Div(decimal.NewFromInt(1).Add(rate))
}

// Gross converte um valor líquido em bruto
func Gross(net, rate decimal.Decimal) decimal.Decimal {
	return net.Mul(decimal.NewFromInt(1).Add(rate))
}

// IVAPortion devolve a parte de IVA contida num valor bruto
func IVAPortion(gross, rate decimal.Decimal) decimal.Decimal {
	return gross.Sub(Net(gross, rate))
}
