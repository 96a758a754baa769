package internal

type Database interface {
	WriteLogMessage(data Data) error
	ReadLog() (interface{}, error)
}

type Data interface {
	DataType() string
}
