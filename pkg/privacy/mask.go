package privacy

import "strings"

// MaskIP redacts the last octet of a dotted-quad IPv4 address, keeping
// subnet-level information: "192.168.1.100" -> "192.168.1.xxx". Anything
// that does not split into exactly four dot-separated segments (IPv6,
// hostnames, empty strings) yields "unknown".
//
// Segment values are not validated: "999.1.2.3" masks to "999.1.2.xxx".
// This matches the observed behavior of the deployed system and callers
// rely on the function being total.
func MaskIP(ip string) string {
	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return "unknown"
	}
	return parts[0] + "." + parts[1] + "." + parts[2] + ".xxx"
}
