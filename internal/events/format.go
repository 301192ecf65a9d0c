package events

import "fmt"

func workerSource(id int) string {
	return fmt.Sprintf("worker-%d", id)
}

func fmtAny(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
