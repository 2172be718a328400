package models

// Mountain is a resort where sessions take place
type Mountain struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	State  string   `json:"state"`
	Passes []string `json:"passes"`
	Region string   `json:"region"`
}

// Mountains is the static catalog of supported resorts
var Mountains = []Mountain{
	{ID: "loon", Name: "Loon Mountain", State: "NH", Passes: []string{"ikon"}, Region: "icecoast"},
	{ID: "sunday-river", Name: "Sunday River", State: "ME", Passes: []string{"ikon"}, Region: "icecoast"},
	{ID: "sugarloaf", Name: "Sugarloaf", State: "ME", Passes: []string{"ikon"}, Region: "icecoast"},
	{ID: "killington", Name: "Killington", State: "VT", Passes: []string{"ikon"}, Region: "icecoast"},
	{ID: "sugarbush", Name: "Sugarbush", State: "VT", Passes: []string{"ikon"}, Region: "icecoast"},
	{ID: "stratton", Name: "Stratton", State: "VT", Passes: []string{"ikon"}, Region: "icecoast"},
	{ID: "mount-snow", Name: "Mount Snow", State: "VT", Passes: []string{"epic"}, Region: "icecoast"},
	{ID: "okemo", Name: "Okemo", State: "VT", Passes: []string{"epic"}, Region: "icecoast"},
	{ID: "stowe", Name: "Stowe", State: "VT", Passes: []string{"epic"}, Region: "icecoast"},
	{ID: "jay-peak", Name: "Jay Peak", State: "VT", Passes: []string{"indy"}, Region: "icecoast"},
	{ID: "cannon", Name: "Cannon Mountain", State: "NH", Passes: []string{"indy"}, Region: "icecoast"},
	{ID: "bretton-woods", Name: "Bretton Woods", State: "NH", Passes: []string{"ikon"}, Region: "icecoast"},
	{ID: "waterville", Name: "Waterville Valley", State: "NH", Passes: []string{"ikon"}, Region: "icecoast"},
	{ID: "wachusett", Name: "Wachusett", State: "MA", Passes: []string{"epic"}, Region: "icecoast"},
}

// MountainByID looks up a mountain in the catalog
func MountainByID(id string) (Mountain, bool) {
	for _, m := range Mountains {
		if m.ID == id {
			return m, true
		}
	}
	return Mountain{}, false
}

// MountainName returns the display name for id, or "Unknown"
func MountainName(id string) string {
	if m, ok := MountainByID(id); ok {
		return m.Name
	}
	return "Unknown"
}
