package logs

// ListGroupsArgs are the arguments of list_log_groups.
type ListGroupsArgs struct {
	Prefix string `json:"prefix,omitempty" mapstructure:"prefix" jsonschema_description:"Only return log groups whose name starts with this prefix."`
	Limit  int    `json:"limit,omitempty" mapstructure:"limit" validate:"gte=0" jsonschema:"minimum=0" jsonschema_description:"Maximum number of log groups to return."`
}

// FetchLogsArgs are the arguments of fetch_logs. An explicit ISO range takes
// precedence over lookback_minutes.
type FetchLogsArgs struct {
	LogGroup        string  `json:"log_group" mapstructure:"log_group" validate:"required" jsonschema:"required" jsonschema_description:"Exact name of the log group to read."`
	LookbackMinutes float64 `json:"lookback_minutes,omitempty" mapstructure:"lookback_minutes" validate:"gte=0" jsonschema:"minimum=0" jsonschema_description:"How far back from now to read, in minutes. Defaults to 60."`
	StartTimeISO    string  `json:"start_time_iso,omitempty" mapstructure:"start_time_iso" jsonschema:"format=date-time" jsonschema_description:"Window start as an RFC 3339 timestamp."`
	EndTimeISO      string  `json:"end_time_iso,omitempty" mapstructure:"end_time_iso" jsonschema:"format=date-time" jsonschema_description:"Window end as an RFC 3339 timestamp. Defaults to now."`
	Limit           int     `json:"limit,omitempty" mapstructure:"limit" validate:"gte=0" jsonschema:"minimum=0" jsonschema_description:"Maximum number of events to return, newest first."`
}

// SearchLogsArgs are the arguments of search_logs. Without log_group the
// search spans every group.
type SearchLogsArgs struct {
	Pattern         string  `json:"pattern" mapstructure:"pattern" validate:"required" jsonschema:"required" jsonschema_description:"Case-insensitive text to look for in log messages."`
	LogGroup        string  `json:"log_group,omitempty" mapstructure:"log_group" jsonschema_description:"Restrict the search to this log group."`
	LookbackMinutes float64 `json:"lookback_minutes,omitempty" mapstructure:"lookback_minutes" validate:"gte=0" jsonschema:"minimum=0" jsonschema_description:"How far back from now to search, in minutes. Defaults to 60."`
	StartTimeISO    string  `json:"start_time_iso,omitempty" mapstructure:"start_time_iso" jsonschema:"format=date-time" jsonschema_description:"Window start as an RFC 3339 timestamp."`
	EndTimeISO      string  `json:"end_time_iso,omitempty" mapstructure:"end_time_iso" jsonschema:"format=date-time" jsonschema_description:"Window end as an RFC 3339 timestamp. Defaults to now."`
	Limit           int     `json:"limit,omitempty" mapstructure:"limit" validate:"gte=0" jsonschema:"minimum=0" jsonschema_description:"Maximum number of matches to return, newest first."`
}
