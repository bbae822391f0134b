package manifest

import (
	"reflect"
	"strings"
)

// Path is where miniapp hosts look for the manifest.
const Path = "/.well-known/farcaster.json"

// Options are the deployment specific manifest values.
type Options struct {
	AppURL    string
	Header    string
	Payload   string
	Signature string
	// WebhookURL is published only when it is an https URL.
	WebhookURL string
}

// Build assembles the miniapp manifest with empty values removed.
func Build(opts Options) map[string]any {
	base := strings.TrimRight(opts.AppURL, "/")
	image := base + "/images/Ninad Bedekar Sir.png"

	webhook := ""
	if strings.HasPrefix(opts.WebhookURL, "https://") {
		webhook = opts.WebhookURL
	}

	doc := map[string]any{
		"accountAssociation": map[string]any{
			"header":    opts.Header,
			"payload":   opts.Payload,
			"signature": opts.Signature,
		},
		"miniapp": map[string]any{
			"version":               "1",
			"name":                  "Maratha Music",
			"homeUrl":               base,
			"iconUrl":               image,
			"splashImageUrl":        image,
			"splashBackgroundColor": "#0a0a0a",
			"webhookUrl":            webhook,
			"subtitle":              "Chhatrapati Shivaji Maharaj's Musical Legacy",
			"description":           "Music player honoring the legacy of Chhatrapati Shivaji Maharaj with Base blockchain integration. Stream music, earn points, and connect with Web3.",
			"screenshotUrls":        []string{},
			"primaryCategory":       "music",
			"tags":                  []string{"music", "miniapp", "baseapp", "web3", "blockchain"},
			"heroImageUrl":          image,
			"tagline":               "Stream and earn",
			"ogTitle":               "Maratha Music - Chhatrapati Shivaji Maharaj",
			"ogDescription":         "Music player honoring the legacy of Chhatrapati Shivaji Maharaj with Base blockchain integration",
			"ogImageUrl":            image,
			"noindex":               false,
		},
	}
	return StripEmpty(doc)
}

// StripEmpty removes empty strings, nils, and empty slices and maps at every
// depth. A map left empty by stripping is removed from its parent. Booleans
// and numbers are kept whatever their value.
func StripEmpty(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if v, keep := strip(v); keep {
			out[k] = v
		}
	}
	return out
}

func strip(v any) (any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case string:
		return t, t != ""
	case map[string]any:
		s := StripEmpty(t)
		return s, len(s) > 0
	case []any:
		items := make([]any, 0, len(t))
		for _, item := range t {
			if item, keep := strip(item); keep {
				items = append(items, item)
			}
		}
		return items, len(items) > 0
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return v, rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, false
		}
	}
	return v, true
}
