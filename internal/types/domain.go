package types

import "time"

// NotInformedCompany is stored when a customer did not tell us their company.
const NotInformedCompany = "Não informado"

// Customer is a paying (or about to pay) client of the agency.
// Email is the natural key and is unique across the store.
type Customer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"nome"`
	Email     string    `json:"email"`
	Phone     string    `json:"telefone,omitempty"`
	Company   string    `json:"empresa,omitempty"`
	Active    bool      `json:"ativo"`
	CreatedAt time.Time `json:"data_cadastro"`
}

// CustomerInput carries the contact fields received from a checkout or webhook.
type CustomerInput struct {
	Name     string `json:"name"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone"`
	Company  string `json:"company"`
	Document string `json:"document"`
}

// Plan is a sellable service tier. Name is the natural key.
type Plan struct {
	ID               int64       `json:"id"`
	Name             string      `json:"nome"`
	Price            float64     `json:"preco"`
	Description      string      `json:"descricao,omitempty"`
	Benefits         BenefitList `json:"beneficios,omitempty"`
	ActiveCampaigns  int         `json:"campanhas_ativas"`
	MonthlyCreatives int         `json:"criativos_mes"`
	Reports          string      `json:"relatorios"`
	Support          string      `json:"suporte"`
	Active           bool        `json:"ativo"`
}

// BenefitList is the ordered list of marketing bullet points for a plan.
type BenefitList []string

// UpsellItem is one add-on selected during checkout.
type UpsellItem struct {
	Code       string     `json:"code"`
	Title      string     `json:"title"`
	Price      float64    `json:"price"`
	Recurrence Recurrence `json:"recurrence"`
}

// UpsellList is the ordered upsell selection persisted with a subscription.
type UpsellList []UpsellItem

// Subscription mirrors a provider order locally.
// ExternalOrderID, when set, is unique and doubles as the idempotency key for
// webhook replays.
type Subscription struct {
	ID              int64              `json:"id"`
	CustomerID      int64              `json:"cliente_id"`
	PlanID          int64              `json:"plano_id"`
	StartAt         time.Time          `json:"data_inicio"`
	EndAt           *time.Time         `json:"data_fim,omitempty"`
	Status          SubscriptionStatus `json:"status"`
	AmountPaid      float64            `json:"valor_pago"`
	PaymentMethod   PaymentMethod      `json:"forma_pagamento,omitempty"`
	ExternalOrderID string             `json:"yampi_order_id,omitempty"`
	Upsells         UpsellList         `json:"upsells,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// WebhookDelivery is the audit record of one inbound provider notification.
type WebhookDelivery struct {
	ID              int64        `json:"id"`
	Provider        string       `json:"provider"`
	EventType       GatewayEvent `json:"event_type"`
	OrderID         string       `json:"order_id,omitempty"`
	SignatureValid  bool         `json:"signature_valid"`
	Payload         []byte       `json:"-"`
	ProcessedAt     *time.Time   `json:"processed_at,omitempty"`
	ProcessingError string       `json:"processing_error,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
}
