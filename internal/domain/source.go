package domain

// Source identifies the upstream price provider that produced a snapshot.
type Source string

const (
	SourceDexScreener Source = "dexscreener"
	SourceJupiter     Source = "jupiter"
	SourceBirdeye     Source = "birdeye"
)

// String returns the string representation of Source.
func (s Source) String() string {
	return string(s)
}

// IsValid checks if the source is a known provider.
func (s Source) IsValid() bool {
	return s == SourceDexScreener || s == SourceJupiter || s == SourceBirdeye
}
