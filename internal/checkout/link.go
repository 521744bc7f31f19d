package checkout

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/skip2/go-qrcode"
)

const DefaultChatBaseURL = "https://wa.me"

// DeepLink appends the percent-encoded message to the chat URL for the business number.
// Spaces are encoded as %20 rather than "+".
func DeepLink(baseURL, countryCode, number, message string) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = DefaultChatBaseURL
	}
	digits := onlyDigits(countryCode) + onlyDigits(number)
	if onlyDigits(number) == "" {
		return "", fmt.Errorf("business number is required")
	}
	encoded := strings.ReplaceAll(url.QueryEscape(message), "+", "%20")
	return fmt.Sprintf("%s/%s?text=%s", base, digits, encoded), nil
}

// QRCode renders link as a PNG of size x size pixels.
func QRCode(link string, size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}
	png, err := qrcode.Encode(link, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code: %w", err)
	}
	return png, nil
}

func onlyDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
