package track

// Config names the DynamoDB tables backing each entity type plus the
// counter table used for issue numbering. Zero-value fields are filled in
// from DefaultConfig by NewRegistry.
type Config struct {
	UserTable       string
	ProjectTable    string
	IssueTable      string
	SubIssueTable   string
	TimelogTable    string
	ProjectionTable string
	VersionTable    string
	StoryTable      string
	TaskTable       string
	CounterTable    string
}

// DefaultConfig returns the table names used when none are configured.
func DefaultConfig() Config {
	return Config{
		UserTable:       "gantry_users",
		ProjectTable:    "gantry_projects",
		IssueTable:      "gantry_issues",
		SubIssueTable:   "gantry_subissues",
		TimelogTable:    "gantry_timelogs",
		ProjectionTable: "gantry_projections",
		VersionTable:    "gantry_versions",
		StoryTable:      "gantry_stories",
		TaskTable:       "gantry_tasks",
		CounterTable:    "gantry_counters",
	}
}

func (c *Config) validate() {
	def := DefaultConfig()
	fill := func(dst *string, fallback string) {
		if *dst == "" {
			*dst = fallback
		}
	}
	fill(&c.UserTable, def.UserTable)
	fill(&c.ProjectTable, def.ProjectTable)
	fill(&c.IssueTable, def.IssueTable)
	fill(&c.SubIssueTable, def.SubIssueTable)
	fill(&c.TimelogTable, def.TimelogTable)
	fill(&c.ProjectionTable, def.ProjectionTable)
	fill(&c.VersionTable, def.VersionTable)
	fill(&c.StoryTable, def.StoryTable)
	fill(&c.TaskTable, def.TaskTable)
	fill(&c.CounterTable, def.CounterTable)
}
