package alert

// Resource is a support service attached to an alert.
type Resource struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
	Note    string `json:"note,omitempty"`
}

// GeneralResources are attached to every alert.
var GeneralResources = []Resource{
	{Name: "Tele-MANAS (national mental health helpline)", Contact: "14416", Note: "24x7, multilingual"},
	{Name: "KIRAN mental health rehabilitation helpline", Contact: "1800-599-0019", Note: "toll free"},
	{Name: "Emergency services", Contact: "112"},
}

// WomenResources are attached when a female user shows abuse indicators.
var WomenResources = []Resource{
	{Name: "Women Helpline", Contact: "181", Note: "24x7 support for women facing violence"},
	{Name: "National Commission for Women", Contact: "7827170170", Note: "WhatsApp and helpline"},
}

// TrustedResources are attached when the user has listed unsafe contacts.
var TrustedResources = []Resource{
	{Name: "Trusted contacts", Contact: "your saved trusted contacts", Note: "reach out to someone you listed as safe"},
	{Name: "One Stop Centre", Contact: "181", Note: "shelter, legal and medical help"},
}

func cloneResources(groups ...[]Resource) []Resource {
	var out []Resource
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
