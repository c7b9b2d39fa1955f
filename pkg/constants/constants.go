package constants

// CLIBinaryName is the name used in user-facing output to refer to the CLI
const CLIBinaryName = "lotar"

// TasksDirName is the workspace state directory discovered or created at the root
const TasksDirName = ".tasks"

// SprintsDirName is the reserved folder for sprint files inside the tasks directory
const SprintsDirName = "@sprints"

// GlobalConfigFileName is the workspace-global configuration file
const GlobalConfigFileName = "config.yml"

// DefaultServerPort is the HTTP server port when neither config nor LOTAR_PORT overrides it
const DefaultServerPort = 8080

// MaxListLimit caps page sizes for cursor-paginated list responses
const MaxListLimit = 200

// DefaultBacklogLimit is the default page size for sprint backlog queries
const DefaultBacklogLimit = 50

// DefaultVelocityWindow is how many closed sprints velocity looks back over
const DefaultVelocityWindow = 6

// ReservedTaskFields are task field names that custom fields may not shadow
var ReservedTaskFields = []string{
	"id",
	"title",
	"subtitle",
	"description",
	"status",
	"priority",
	"task_type",
	"reporter",
	"assignee",
	"due_date",
	"effort",
	"tags",
	"relationships",
	"comments",
	"references",
	"sprints",
	"history",
	"created",
	"modified",
	"custom_fields",
}
