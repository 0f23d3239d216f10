package protocol

import "time"

// Directory and path constants used throughout stockton.
const (
	// StocktonDir is the user-level state directory (e.g., ~/.stockton).
	StocktonDir = ".stockton"

	// SettingsDBName is the sqlite file holding local settings.
	SettingsDBName = "settings.db"
)

// Backend table names.
const (
	TableAgents     = "agents"
	TableTasks      = "tasks"
	TableCronJobs   = "cron_jobs"
	TableTokenUsage = "token_usage"
	TableArena      = "chat_arena"
)

// Realtime change types delivered by the backend.
const (
	ChangeInsert = "INSERT"
	ChangeUpdate = "UPDATE"
	ChangeDelete = "DELETE"
	ChangeAll    = "*"
)

// DefaultPollInterval is how often visible lists are re-fetched.
const DefaultPollInterval = 5 * time.Second

// OptimisticPrefix marks locally synthesized row ids. Backend ids never carry it.
const OptimisticPrefix = "optimistic-"

// Chat defaults.
const (
	// DefaultOperatorID is the agent id used for messages typed by the human operator.
	DefaultOperatorID = "ansh"

	// DefaultThreadID is the webhook thread every arena message is posted to.
	DefaultThreadID = "stockton-chat"

	// OperatorEmoji is shown next to operator messages.
	OperatorEmoji = "👤"
)

// Command tokens produced by the cron copilot.
const (
	CommandHealthCheck = "check_agent_status()"
	CommandDailyReport = "generate_daily_report()"
	CommandBackup      = "run_backup()"
	CommandSync        = "run_sync()"
	CommandAgentTask   = "run_agent_task()"
)

// ErrorBodyLimit caps how much of a rejected response body is echoed back.
const ErrorBodyLimit = 200
