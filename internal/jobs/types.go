package jobs

const TaskRecordLogin = "admin:record_login"

// QueueAuth is the asynq queue login bookkeeping runs on.
const QueueAuth = "auth"

type RecordLoginPayload struct {
	AdminID string `json:"admin_id"`
	AtUnix  int64  `json:"at_unix"`
}
