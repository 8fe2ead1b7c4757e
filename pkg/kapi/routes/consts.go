package routes

var (
	BearerAuth = []map[string][]string{
		{"bearer": {}},
	}
)

type Tag string

const (
	TagAuth      Tag = "auth"
	TagRenders   Tag = "renders"
	TagFiles     Tag = "files"
	TagAnalytics Tag = "analytics"
	TagHealth    Tag = "health"
)

func (t Tag) String() string { return string(t) }

func AllTags() []string {
	return []string{
		TagAuth.String(),
		TagRenders.String(),
		TagFiles.String(),
		TagAnalytics.String(),
		TagHealth.String(),
	}
}
