package relay

// Logger - interface for logging relay events
type Logger interface {
	Println(v ...interface{})
}

func logInfo(l Logger, v ...interface{}) {
	if l == nil {
		return
	}
	l.Println(append([]interface{}{"INFO"}, v...)...)
}

func logWarn(l Logger, v ...interface{}) {
	if l == nil {
		return
	}
	l.Println(append([]interface{}{"WARN"}, v...)...)
}

func logError(l Logger, v ...interface{}) {
	if l == nil {
		return
	}
	l.Println(append([]interface{}{"ERR"}, v...)...)
}
