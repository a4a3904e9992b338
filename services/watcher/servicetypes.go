package watcher

import "fmt"

// ServiceType is one entry of the portal's service menu. Title is the
// human-readable name callers pass in; Selector is the text fragment
// that identifies the matching menu control on the portal.
type ServiceType struct {
	Title    string `json:"title"`
	Selector string `json:"selector"`
}

// the closed set of services the portal offers
var serviceTypes = []ServiceType{
	{Title: "Driver License - First Time", Selector: "New driver over 18"},
	{Title: "Driver License Duplicate", Selector: "Replace lost or stolen license"},
	{Title: "Driver License Renewal", Selector: "Renew an existing license"},
	{Title: "Fees", Selector: "License reinstatement appointment"},
	{Title: "ID Card", Selector: "State ID card"},
	{Title: "Knowledge/Computer Test", Selector: "Written, traffic signs"},
	{Title: "Legal Presence", Selector: "For non-citizens to prove"},
	{Title: "Motorcycle Skills Test", Selector: "Schedule a motorcycle driving skills test"},
	{Title: "Non-CDL Road Test", Selector: "Schedule a driving skills test"},
	{Title: "Permits", Selector: "Adult permit"},
	{Title: "Teen Driver Level 1", Selector: "Limited learner permit"},
	{Title: "Teen Driver Level 2", Selector: "Limited provisional license"},
	{Title: "Teen Driver Level 3", Selector: "Full provisional license"},
}

// ServiceByTitle matches a caller-provided title to a known service.
func ServiceByTitle(title string) (ServiceType, error) {
	for _, s := range serviceTypes {
		if s.Title == title {
			return s, nil
		}
	}
	return ServiceType{}, fmt.Errorf("service with title %q not found", title)
}

// ServiceTypes returns the full menu, mostly for display purposes.
func ServiceTypes() []ServiceType {
	out := make([]ServiceType, len(serviceTypes))
	copy(out, serviceTypes)
	return out
}
