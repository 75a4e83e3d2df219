package instance

import (
	"os"

	"github.com/angelmondragon/storefront-cart/pkg/env"
)

const fallbackID = "storefront-0"

// GetID identifies this process in logs. STOREFRONT_INSTANCE_ID wins, then the hostname.
func GetID() string {
	if id := env.Get("STOREFRONT_INSTANCE_ID", ""); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallbackID
}
