package worker

// Job はワーカーが実行するジョブを表す
// 一度だけ、ちょうど一つのワーカーによって呼び出される
type Job func()

// messageKind はディスパッチメッセージの種類
type messageKind int

const (
	msgNewJob messageKind = iota
	msgTerminate
)

// message はキューを流れるディスパッチメッセージ
type message struct {
	kind messageKind
	job  Job
}

func newJobMessage(job Job) message {
	return message{kind: msgNewJob, job: job}
}

func terminateMessage() message {
	return message{kind: msgTerminate}
}
