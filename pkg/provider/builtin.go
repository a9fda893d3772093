package provider

// Options configures the built-in provider set.
type Options struct {
	Fetcher       Fetcher
	NumverifyKey  string
	TruecallerKey string

	// DeepScan enables browser-backed providers.
	DeepScan bool
	Browser  SessionFactory
}

// Builtin returns the default provider entries in report order.
func Builtin(opts Options) []Entry {
	f := opts.Fetcher

	entries := []Entry{
		{Name: "phonenumbers", Category: CategoryBasicInfo, Provider: BasicInfo()},

		{Name: "carrier", Category: CategoryCarrierInfo, Provider: Carrier()},
		{Name: "numverify", Category: CategoryCarrierInfo, Provider: NewNumverify(f, opts.NumverifyKey, "")},

		{Name: "geocoder", Category: CategoryLocation, Provider: Geocoder()},
		{Name: "timezone", Category: CategoryLocation, Provider: Timezone()},

		{Name: "whatsapp", Category: CategorySocialMedia, Provider: NewPresence(f, WhatsAppURL)},
		{Name: "telegram", Category: CategorySocialMedia, Provider: NewPresence(f, TelegramURL)},
		{Name: "facebook", Category: CategorySocialMedia, Provider: NewPresence(f, FacebookURL)},
		{Name: "instagram", Category: CategorySocialMedia, Provider: NewPresence(f, InstagramURL)},
		{Name: "linkedin", Category: CategorySocialMedia, Provider: NewPresence(f, LinkedInURL)},
		{Name: "tiktok", Category: CategorySocialMedia, Provider: NewPresence(f, TikTokURL)},

		{Name: "wa_profile", Category: CategoryWhatsAppIntel, Provider: NewPresence(f, WhatsAppURL, WithMeta())},
		{Name: "wa_business", Category: CategoryWhatsAppIntel, Provider: NewPresence(f, WhatsAppBusinessURL, WithMeta())},
	}

	if opts.DeepScan && opts.Browser != nil {
		entries = append(entries, Entry{
			Name:     "wa_status",
			Category: CategoryWhatsAppIntel,
			Browser:  true,
			Provider: NewWhatsAppStatus(opts.Browser, ""),
		})
	}

	entries = append(entries, Entry{
		Name:     "truecaller",
		Category: CategoryReverseLookup,
		Provider: NewTruecaller(f, opts.TruecallerKey, "", ""),
	})
	return entries
}

// NewDefaultRegistry registers Builtin(opts).
func NewDefaultRegistry(opts Options) (*Registry, error) {
	r := NewRegistry()
	if err := r.RegisterAll(Builtin(opts)); err != nil {
		return nil, err
	}
	return r, nil
}
