package model

import (
	"encoding/json"
	"strings"
)

// Subscription labels that are not Choice months.
const (
	GamesCollection = "Humble Games Collection"
	Vault           = "Humble Vault"
)

// Subscription is one entry reported to the launcher.
type Subscription struct {
	Name  string
	Owned bool
}

// PerksStatus is the state of the user's subscriber perks.
type PerksStatus string

const (
	PerksActive   PerksStatus = "active"
	PerksInactive PerksStatus = "inactive"
	PerksPaused   PerksStatus = "paused"
)

// UserSubscriptionState is the userSubscriptionState webpack model.
type UserSubscriptionState struct {
	PerksStatus                          PerksStatus `json:"perksStatus"`
	MonthlyOwnsActiveContent             bool        `json:"monthlyOwnsActiveContent"`
	WillReceiveFutureMonths              bool        `json:"willReceiveFutureMonths"`
	MonthlyNewestOwnedContentMachineName string      `json:"monthlyNewestOwnedContentMachineName,omitempty"`
	IsPaused                             bool        `json:"isPaused"`
	CanResubscribe                       bool        `json:"canResubscribe"`
}

// PerksActive reports whether Vault and Games Collection are available.
func (s UserSubscriptionState) PerksActive() bool { return s.PerksStatus == PerksActive }

// SubscriptionPlan is the userSubscriptionPlan webpack model.
type SubscriptionPlan struct {
	Tier      string `json:"tier"`
	HumanName string `json:"human_name,omitempty"`
	Length    int    `json:"length,omitempty"`
}

// IsLite reports whether the plan is the Lite tier, which does not include
// the monthly games.
func (p SubscriptionPlan) IsLite() bool { return strings.EqualFold(p.Tier, "lite") }

// PayEarlyOptions is the payEarlyOptions webpack model.
type PayEarlyOptions struct {
	ProductMachineName string `json:"productMachineName"`
	ActiveContentStart string `json:"activeContentStart,omitempty"`
}

// ChoiceMarketingData is the choiceMarketingData webpack model.
type ChoiceMarketingData struct {
	ActiveContentMachineName string `json:"activeContentMachineName"`
}

// SubscriberHubData holds the models scraped from /monthly/subscriber.
type SubscriberHubData struct {
	Plan     SubscriptionPlan
	PayEarly PayEarlyOptions
	Content  json.RawMessage
}

// SubscriptionProduct is one entry of subscription_products_with_gamekeys.
type SubscriptionProduct struct {
	ProductMachineName string          `json:"productMachineName"`
	ProductURLPath     string          `json:"productUrlPath,omitempty"`
	Gamekey            string          `json:"gamekey,omitempty"`
	ContentChoiceData  json.RawMessage `json:"contentChoiceData,omitempty"`
}

// IsChoice reports whether the product is a Choice month. Legacy Humble
// Monthly products carry no contentChoiceData and are not Choice months.
func (p SubscriptionProduct) IsChoice() bool {
	return strings.HasSuffix(p.ProductMachineName, "_choice") && len(p.ContentChoiceData) > 0
}
