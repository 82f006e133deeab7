package domain

// Bucket is one of the three risk classifications an Account can sit in.
type Bucket string

const (
	Liquidatable Bucket = "liquidatable"
	AtRisk       Bucket = "at_risk"
	Healthy      Bucket = "healthy"
)

// AssignBucket implements the bucket assignment rule: health_factor < 1.0 is
// liquidatable, 1.0..atRisk inclusive is at-risk, above atRisk is healthy.
func AssignBucket(healthFactor, atRiskThreshold Decimal) Bucket {
	one := NewFromInt(1)
	if healthFactor.LessThan(one) {
		return Liquidatable
	}
	if healthFactor.LessThanOrEqual(atRiskThreshold) {
		return AtRisk
	}
	return Healthy
}

// Table returns the logical table name backing this bucket.
func (b Bucket) Table() string {
	switch b {
	case Liquidatable:
		return "liquidatable_accounts"
	case AtRisk:
		return "at_risk_accounts"
	case Healthy:
		return "healthy_accounts"
	default:
		return ""
	}
}

// Buckets lists all three buckets in risk order (most critical first), the
// order the refresh loop processes them in.
func Buckets() []Bucket {
	return []Bucket{Liquidatable, AtRisk, Healthy}
}
