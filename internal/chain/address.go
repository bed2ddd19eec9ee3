package chain

// ShortAddr shortens an address or hash to 0x1234…5678. Strings of 13
// characters or fewer are returned as is.
func ShortAddr(s string) string {
	if len(s) <= 13 {
		return s
	}
	return s[:6] + "…" + s[len(s)-4:]
}
