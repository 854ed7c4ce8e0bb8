package utils

import (
	"net/url"
	"strings"
)

const maskedSecret = "***MASKED***"

// MaskConnString hides the password part of a database connection string.
// Handles URL style DSNs (oracle://, postgres://) and user/password@host style.
func MaskConnString(connStr string) string {
	if connStr == "" {
		return "--- EMPTY ---"
	}

	if strings.Contains(connStr, "://") {
		u, err := url.Parse(connStr)
		if err != nil {
			return "*** UNPARSABLE CONN STRING ***"
		}
		if u.User == nil {
			return connStr
		}
		if _, hasPassword := u.User.Password(); !hasPassword {
			return connStr
		}
		u.User = url.UserPassword(u.User.Username(), "MASKED")
		return strings.Replace(u.String(), ":MASKED@", ":"+maskedSecret+"@", 1)
	}

	// Oracle easy-connect: user/password@host:port/service
	at := strings.LastIndex(connStr, "@")
	if at < 0 {
		return connStr
	}
	auth, host := connStr[:at], connStr[at+1:]
	if slash := strings.Index(auth, "/"); slash >= 0 {
		return auth[:slash] + "/" + maskedSecret + "@" + host
	}
	return connStr
}
