package protocol

import (
	"strconv"
)

// Response string tokens, written verbatim by the Write* functions below.
const (
	valueToken       = "VALUE"
	endToken         = "END"
	storedToken      = "STORED"
	notStoredToken   = "NOT_STORED"
	existsToken      = "EXISTS"
	notFoundToken    = "NOT_FOUND"
	deletedToken     = "DELETED"
	touchedToken     = "TOUCHED"
	okToken          = "OK"
	errorToken       = "ERROR"
	clientErrorToken = "CLIENT_ERROR"
	serverErrorToken = "SERVER_ERROR"
	versionToken     = "VERSION"
	statToken        = "STAT"
)

// Writer is the minimal output sink the Write* functions need; *bytes.Buffer
// and *bufio.Writer both satisfy it without an adapter.
type Writer interface {
	WriteString(s string) (int, error)
}

func writeLine(w Writer, s string) {
	w.WriteString(s)
	w.WriteString(Separator)
}

// WriteValue writes one VALUE row for a get/gets hit. cas is only appended
// when withCas is set (i.e. the request was "gets").
func WriteValue(w Writer, key string, flags uint32, value []byte, cas uint64, withCas bool) {
	w.WriteString(valueToken)
	w.WriteString(" ")
	w.WriteString(key)
	w.WriteString(" ")
	w.WriteString(strconv.FormatUint(uint64(flags), 10))
	w.WriteString(" ")
	w.WriteString(strconv.Itoa(len(value)))
	if withCas {
		w.WriteString(" ")
		w.WriteString(strconv.FormatUint(cas, 10))
	}
	w.WriteString(Separator)
	writeRawValue(w, value)
}

func writeRawValue(w Writer, value []byte) {
	w.WriteString(string(value))
	w.WriteString(Separator)
}

func WriteEnd(w Writer) { writeLine(w, endToken) }

func WriteStored(w Writer)    { writeLine(w, storedToken) }
func WriteNotStored(w Writer) { writeLine(w, notStoredToken) }
func WriteExists(w Writer)    { writeLine(w, existsToken) }
func WriteNotFound(w Writer)  { writeLine(w, notFoundToken) }
func WriteDeleted(w Writer)   { writeLine(w, deletedToken) }
func WriteTouched(w Writer)   { writeLine(w, touchedToken) }
func WriteOK(w Writer)        { writeLine(w, okToken) }

func WriteInteger(w Writer, v uint64) {
	writeLine(w, strconv.FormatUint(v, 10))
}

func WriteVersion(w Writer, version string) {
	w.WriteString(versionToken)
	w.WriteString(" ")
	writeLine(w, version)
}

func WriteStat(w Writer, name string, value string) {
	w.WriteString(statToken)
	w.WriteString(" ")
	w.WriteString(name)
	w.WriteString(" ")
	writeLine(w, value)
}

func WriteError(w Writer) { writeLine(w, errorToken) }

func WriteClientError(w Writer, err error) {
	w.WriteString(clientErrorToken)
	w.WriteString(" ")
	writeLine(w, err.Error())
}

func WriteServerError(w Writer, err error) {
	w.WriteString(serverErrorToken)
	w.WriteString(" ")
	writeLine(w, err.Error())
}
