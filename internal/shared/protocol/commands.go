package protocol

// Client -> coordinator commands.
const (
	CmdRegister    = "REGISTER"
	CmdLogin       = "LOGIN"
	CmdSubmitJob   = "SUBMIT_JOB"
	CmdCheckStatus = "CHECK_STATUS"
	CmdCancelJob   = "CANCEL_JOB"
	CmdGetBill     = "GET_BILL"
)

// Coordinator -> client replies.
const (
	ReplyValidEmail         = "VALID_EMAIL"
	ReplyInvalidEmail       = "INVALID_EMAIL"
	ReplyEmailFound         = "EMAIL_FOUND"
	ReplyEmailNotFound      = "EMAIL_NOT_FOUND"
	ReplyLoginSuccess       = "LOGIN_SUCCESS"
	ReplyLoginFailed        = "LOGIN_FAILED"
	ReplyNotLoggedIn        = "NOT_LOGGED_IN"
	ReplyJobSubmitted       = "JOB_SUBMITTED"
	ReplyJobFound           = "JOB_FOUND"
	ReplyJobNotFound        = "JOB_NOT_FOUND"
	ReplyJobCancelled       = "JOB_CANCELLED"
	ReplyJobNotCancellable  = "JOB_NOT_CANCELLABLE"
	ReplyWorkerNotFound     = "WORKER_NOT_FOUND"
	ReplyJobNotBillable     = "JOB_NOT_BILLABLE"
	ReplyOutputLocation     = "OUTPUT_LOCATION"
	ReplyBillInfo           = "BILL_INFO"
	ReplyUnknownCommand     = "UNKNOWN_COMMAND"
	ReplyFilesReceived      = "FILES_RECEIVED"
	ReplyFileTransferPort   = "FILE_TRANSFER_PORT"
	ReplyOutputTransferPort = "OUTPUT_TRANSFER_PORT"
)

// Worker -> coordinator commands. FILE_TRANSFER_PORT, OUTPUT_TRANSFER_PORT and
// FILES_RECEIVED are relayed to the owning client under the same token.
const (
	CmdWorkerHeartbeat    = "WORKER_HEARTBEAT"
	CmdFileTransferPort   = "FILE_TRANSFER_PORT"
	CmdOutputTransferPort = "OUTPUT_TRANSFER_PORT"
	CmdJobComplete        = "JOB_COMPLETE"
	CmdFilesReceived      = "FILES_RECEIVED"
)

// Coordinator -> worker commands.
const (
	CmdProcessJob = "PROCESS_JOB"
	// CmdCancelJob is shared with the client command set.
)
