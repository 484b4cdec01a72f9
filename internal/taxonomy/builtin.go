package taxonomy

import (
	"fmt"
	"strings"
)

// DefaultHomeCurrency applies when a taxonomy does not name one.
const DefaultHomeCurrency = "ARS"

// Built-in taxonomy names accepted by Resolve.
const (
	NameHousehold = "household"
	NamePersonal  = "personal"
)

// Household is the generic household taxonomy. It has no payment methods.
func Household() *Taxonomy {
	return &Taxonomy{
		Name:         NameHousehold,
		HomeCurrency: DefaultHomeCurrency,
		Categories: []Category{
			{Name: "Supermercado", Description: "Groceries, food shopping", DefaultMerchant: "Supermercado"},
			{Name: "Servicios", Description: "Utilities like electricity, gas, internet, phone", DefaultMerchant: "Proveedor de Servicios"},
			{Name: "Transporte", Description: "Fuel, Uber, taxi, public transport, tolls", DefaultMerchant: "Estación de Servicio"},
			{Name: "Ocio", Description: "Restaurants, movies, going out", DefaultMerchant: "Restaurante"},
			{Name: "Salud", Description: "Pharmacy, doctors, gym, sports", DefaultMerchant: "Farmacia"},
			{Name: "Vivienda", Description: "Rent, condo fees", Fixed: true, DefaultMerchant: "Administración"},
			{Name: "Educación", Description: "Courses, books, tuition", DefaultMerchant: "Instituto Educativo"},
			{Name: "Otros", Description: "Anything else", DefaultMerchant: "Comercio Local"},
		},
		Fallback: "Otros",
	}
}

// Personal is the extended owner taxonomy with income, asset and
// client-expense semantics and a closed set of payment methods.
func Personal() *Taxonomy {
	return &Taxonomy{
		Name:         NamePersonal,
		HomeCurrency: DefaultHomeCurrency,
		Categories: []Category{
			{Name: "Ingreso: Sueldo", Description: "Fixed salary", Fixed: true, DefaultMerchant: "Empleador"},
			{Name: "Ingreso: Alquiler", Description: "Rental income", DefaultMerchant: "Inquilino"},
			{Name: "Ingreso: Freelance", Description: "Freelance work", DefaultMerchant: "Cliente"},
			{Name: "Vivienda: Depto", Description: "Apartment costs, condo fees", Fixed: true, DefaultMerchant: "Administración"},
			{Name: "Vehículo: Auto", Description: "Car fuel, insurance, repairs", DefaultMerchant: "Estación de Servicio"},
			{Name: "Vehículo: Moto", Description: "Motorbike fuel, insurance, repairs", DefaultMerchant: "Estación de Servicio"},
			{Name: "Educación: Data Science", Description: "Academic costs", DefaultMerchant: "Instituto Educativo"},
			{Name: "Servicios", Description: "Utilities", Fixed: true, DefaultMerchant: "Proveedor de Servicios"},
			{Name: "Supermercado", Description: "Groceries", DefaultMerchant: "Supermercado"},
			{Name: "Salidas/Ocio", Description: "Restaurants, bars, going out", DefaultMerchant: "Restaurante"},
			{Name: "Suscripciones", Description: "Streaming, software, client subscriptions", Fixed: true, DefaultMerchant: "Servicio de Suscripción"},
			{Name: "Salud", Description: "Pharmacy, doctors, gym", DefaultMerchant: "Farmacia"},
			{Name: "Otros", Description: "Anything else", DefaultMerchant: "Comercio Local"},
		},
		PaymentMethods: []string{"Efectivo", "Débito", "Crédito: Visa", "Crédito: Master", "Crédito: Amex", "Transferencia"},
		DefaultCard:    "Crédito: Visa",
		Cash:           "Efectivo",
		Profile: []string{
			"Assets: an apartment, a car and a motorbike.",
			"Income: fixed salary, rental income (variable) and freelance work (variable).",
			"Education: studies Data Science.",
			"Clients: sometimes pays subscriptions on behalf of clients; mark those is_client_expense=true.",
		},
		Fallback: "Otros",
	}
}

// Resolve returns a built-in taxonomy by name or loads one from a YAML path.
func Resolve(nameOrPath string) (*Taxonomy, error) {
	switch strings.ToLower(strings.TrimSpace(nameOrPath)) {
	case "", NameHousehold:
		return Household(), nil
	case NamePersonal:
		return Personal(), nil
	}
	t, err := Load(nameOrPath)
	if err != nil {
		return nil, fmt.Errorf("Resolve: %w", err)
	}
	return t, nil
}

// WithHomeCurrency returns a copy using a different home currency.
func (t *Taxonomy) WithHomeCurrency(code string) *Taxonomy {
	c := *t
	c.HomeCurrency = strings.ToUpper(strings.TrimSpace(code))
	return &c
}
