package billing

import "aigrowth/internal/types"

// Plan names as stored in the plans table.
const (
	PlanStarter      = "Starter"
	PlanAcceleration = "Aceleração"
	PlanExponential  = "Crescimento Exponencial"
)

// DefaultPlanName is used whenever a SKU or product code is not recognised.
// Unknown items are booked on the cheapest tier.
const DefaultPlanName = PlanStarter

// Provider SKU ids for the base plans.
const (
	SKUStarter      = "40990477"
	SKUAcceleration = "40990482"
	SKUExponential  = "40990485"
)

var skuPlans = map[string]string{
	SKUStarter:      PlanStarter,
	SKUAcceleration: PlanAcceleration,
	SKUExponential:  PlanExponential,
}

var productSKUs = map[string]string{
	"starter":     SKUStarter,
	"aceleracao":  SKUAcceleration,
	"crescimento": SKUExponential,
}

var productPlans = map[string]string{
	"starter":     PlanStarter,
	"aceleracao":  PlanAcceleration,
	"crescimento": PlanExponential,
}

// Annual prices used when a plan has to be created on the fly.
var fallbackPrices = map[string]float64{
	PlanStarter:      3564,
	PlanAcceleration: 7164,
	PlanExponential:  9564,
}

var upsellSKUs = map[string]string{
	"relatorios_semanais_starter":    "UPSELL_REL_SEM_ST",
	"criativos_adicionais":           "UPSELL_CRIATIVOS",
	"suporte_prioritario_starter":    "UPSELL_SUP_PRIOR_ST",
	"relatorios_semanais_aceleracao": "UPSELL_REL_SEM_AC",
	"campanha_adicional":             "UPSELL_CAMPANHA",
	"suporte_prioritario_aceleracao": "UPSELL_SUP_PRIOR_AC",
	"mapeamento_completo":            "UPSELL_MAPEAMENTO",
	"consultoria_mensal":             "UPSELL_CONSULTORIA",
}

// PlanNameForSKU maps a provider SKU to a plan name.
func PlanNameForSKU(sku string) string {
	if name, ok := skuPlans[sku]; ok {
		return name
	}
	return DefaultPlanName
}

// SKUForProduct maps a storefront product code to its provider SKU.
func SKUForProduct(code string) (string, bool) {
	sku, ok := productSKUs[code]
	return sku, ok
}

// PlanNameForProduct maps a storefront product code to a plan name.
func PlanNameForProduct(code string) string {
	if name, ok := productPlans[code]; ok {
		return name
	}
	return DefaultPlanName
}

// FallbackPrice is the annual price recorded for a plan created during
// reconciliation.
func FallbackPrice(planName string) float64 {
	if price, ok := fallbackPrices[planName]; ok {
		return price
	}
	return fallbackPrices[DefaultPlanName]
}

// UpsellSKU maps an upsell code to its provider SKU.
func UpsellSKU(code string) (string, bool) {
	sku, ok := upsellSKUs[code]
	return sku, ok
}

// DefaultPlans is the catalog written by SeedPlans on an empty store.
// Prices are monthly.
func DefaultPlans() []types.Plan {
	return []types.Plan{
		{
			Name:        PlanStarter,
			Price:       297,
			Description: "Ideal para PMEs iniciantes",
			Benefits: types.BenefitList{
				"Dashboard com KPIs principais",
				"Gestão básica de campanhas",
				"Relatórios automáticos mensais",
				"Tracking de conversão básico",
				"Suporte via WhatsApp",
				"1 campanha ativa",
				"2 criativos por mês",
			},
			ActiveCampaigns:  1,
			MonthlyCreatives: 2,
			Reports:          "mensais",
			Support:          "whatsapp",
			Active:           true,
		},
		{
			Name:        PlanAcceleration,
			Price:       597,
			Description: "Para empresas em crescimento",
			Benefits: types.BenefitList{
				"Todos os benefícios do Starter",
				"Gestão multi-plataforma (Google + Facebook)",
				"Email marketing integrado",
				"Landing pages builder",
				"A/B testing automático",
				"Relatórios semanais",
				"2 campanhas ativas",
				"4 criativos por mês",
				"Consultoria estratégica mensal",
			},
			ActiveCampaigns:  2,
			MonthlyCreatives: 4,
			Reports:          "semanais",
			Support:          "prioritario",
			Active:           true,
		},
		{
			Name:        PlanExponential,
			Price:       797,
			Description: "Para empresas que querem escalar",
			Benefits: types.BenefitList{
				"Todos os benefícios anteriores",
				"CRM integrado completo",
				"Análise de concorrência",
				"Automação avançada com IA",
				"Attribution modeling",
				"Forecasting e predições",
				"Suporte prioritário",
				"4 campanhas ativas",
				"5 criativos por mês",
				"Gerente de conta dedicado",
				"Integrações avançadas (TikTok, LinkedIn)",
			},
			ActiveCampaigns:  4,
			MonthlyCreatives: 5,
			Reports:          "quinzenais",
			Support:          "dedicado",
			Active:           true,
		},
	}
}
