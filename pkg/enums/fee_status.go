package enums

// FeeStatus tracks the lifecycle of a platform fee record. The fee is never
// transferred on-chain by this service; "recorded" is the terminal state of
// the simulated settlement.
type FeeStatus string

const (
	FeeStatusPending  FeeStatus = "pending"
	FeeStatusRecorded FeeStatus = "recorded"
)

// String implements fmt.Stringer.
func (f FeeStatus) String() string {
	return string(f)
}

// IsValid reports whether the fee status is recognized.
func (f FeeStatus) IsValid() bool {
	return f == FeeStatusPending || f == FeeStatusRecorded
}
