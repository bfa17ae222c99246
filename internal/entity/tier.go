package entity

type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)
