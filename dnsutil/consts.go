package dnsutil

const (
	V6Suffix = ".ip6.arpa." // The leading '.' is important here as some callers
	V6Zone   = "ip6.arpa."  // rely on strings.HasSuffix() to label match.

	TCPNetwork = "tcp" // Yeah, yea, a bit silly, but case is important
	UDPNetwork = "udp" // so having consts here avoids pernickety errors

	MaxUDPSize uint16 = 1232 // Generally suggested as universally safe in edns0
	MinUDPSize uint16 = 512  // Assumed when the client advertises nothing

	V6NibbleCount = 32 // Nibbles in a full ip6.arpa reverse name
)
