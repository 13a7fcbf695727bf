package definition

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"

	"github.com/jabolina/go-broker/pkg/broker/types"
	"github.com/pkg/errors"
)

// Format constants of the metadata file used for message replay.
const (
	// RecorderMagic marks the head of a metadata file.
	RecorderMagic = uint32(0x2EECC0DE)

	// RecorderVersion of the entry format.
	RecorderVersion = uint8(1)

	// Default number of buffered bytes before flushing to disk.
	defaultFlushThreshold = 4096
)

// Entry types of the metadata file.
const (
	entryNewTopic       = uint8(0)
	entryDataMessage    = uint8(1)
	entryCommandMessage = uint8(2)
)

// headerSize covers the magic and the version byte.
const headerSize = 5

var (
	ErrTopicTableFull    = errors.New("topic table exhausted")
	ErrMetaDataMalformed = errors.New("malformed metadata file")
)

// MetaDataFileWriter records routed messages into a metadata file.
// Topics are interned once and later entries reference them by id.
type MetaDataFileWriter struct {
	file           *os.File
	buf            bytes.Buffer
	topics         map[types.Topic]uint16
	flushThreshold int
}

// NewMetaDataFileWriter opens the file for appending. A fresh file
// gets the header; an existing one has its header validated and its
// topic table restored, so ids stay stable across reopens.
func NewMetaDataFileWriter(fileName string) (*MetaDataFileWriter, error) {
	raw, err := os.ReadFile(fileName)
	if err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "reading %s", fileName)
	}
	f, err := os.OpenFile(fileName, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", fileName)
	}
	w := &MetaDataFileWriter{
		file:           f,
		topics:         make(map[types.Topic]uint16),
		flushThreshold: defaultFlushThreshold,
	}
	if len(raw) == 0 {
		binary.Write(&w.buf, binary.BigEndian, RecorderMagic)
		w.buf.WriteByte(RecorderVersion)
		return w, nil
	}
	topics, err := readTopicTable(raw)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.topics = topics
	return w, nil
}

// readTopicTable walks the entries of an existing metadata file and
// rebuilds the topic intern table.
func readTopicTable(raw []byte) (map[types.Topic]uint16, error) {
	if len(raw) < headerSize {
		return nil, errors.Wrap(ErrMetaDataMalformed, "truncated header")
	}
	if binary.BigEndian.Uint32(raw[:4]) != RecorderMagic {
		return nil, errors.Wrap(ErrMetaDataMalformed, "bad magic")
	}
	if raw[4] != RecorderVersion {
		return nil, errors.Wrapf(ErrMetaDataMalformed, "unsupported version %d", raw[4])
	}
	topics := make(map[types.Topic]uint16)
	for offset := headerSize; offset < len(raw); {
		switch raw[offset] {
		case entryNewTopic:
			if offset+5 > len(raw) {
				return nil, errors.Wrap(ErrMetaDataMalformed, "truncated topic entry")
			}
			id := binary.BigEndian.Uint16(raw[offset+1 : offset+3])
			length := int(binary.BigEndian.Uint16(raw[offset+3 : offset+5]))
			if offset+5+length > len(raw) {
				return nil, errors.Wrap(ErrMetaDataMalformed, "truncated topic name")
			}
			topics[types.Topic(raw[offset+5:offset+5+length])] = id
			offset += 5 + length
		case entryDataMessage, entryCommandMessage:
			if offset+7 > len(raw) {
				return nil, errors.Wrap(ErrMetaDataMalformed, "truncated message entry")
			}
			length := int(binary.BigEndian.Uint32(raw[offset+3 : offset+7]))
			if offset+7+length > len(raw) {
				return nil, errors.Wrap(ErrMetaDataMalformed, "truncated message body")
			}
			offset += 7 + length
		default:
			return nil, errors.Wrapf(ErrMetaDataMalformed, "unknown entry type %d", raw[offset])
		}
	}
	return topics, nil
}

// FlushThreshold returns the buffered byte count that triggers an
// implicit flush.
func (w *MetaDataFileWriter) FlushThreshold() int {
	return w.flushThreshold
}

// SetFlushThreshold changes the implicit flush trigger.
func (w *MetaDataFileWriter) SetFlushThreshold(n int) {
	w.flushThreshold = n
}

// Write records a single routed message.
func (w *MetaDataFileWriter) Write(m types.Message) error {
	id, err := w.topicID(m.Topic)
	if err != nil {
		return err
	}
	if m.IsCommand() {
		w.buf.WriteByte(entryCommandMessage)
		binary.Write(&w.buf, binary.BigEndian, id)
		body, err := commandBody(*m.Command)
		if err != nil {
			return err
		}
		writeBytes(&w.buf, body)
	} else {
		w.buf.WriteByte(entryDataMessage)
		binary.Write(&w.buf, binary.BigEndian, id)
		body, err := types.MarshalData(m.Data)
		if err != nil {
			return err
		}
		writeBytes(&w.buf, body)
	}
	if w.buf.Len() >= w.flushThreshold {
		return w.Flush()
	}
	return nil
}

// topicID interns the topic, emitting a new_topic entry on first use.
func (w *MetaDataFileWriter) topicID(t types.Topic) (uint16, error) {
	if id, ok := w.topics[t]; ok {
		return id, nil
	}
	if len(w.topics) > math.MaxUint16 {
		return 0, ErrTopicTableFull
	}
	id := uint16(len(w.topics))
	w.topics[t] = id
	w.buf.WriteByte(entryNewTopic)
	binary.Write(&w.buf, binary.BigEndian, id)
	binary.Write(&w.buf, binary.BigEndian, uint16(len(t)))
	w.buf.WriteString(string(t))
	return id, nil
}

// Flush writes the buffered entries to disk.
func (w *MetaDataFileWriter) Flush() error {
	if w.buf.Len() == 0 {
		return nil
	}
	_, err := w.file.Write(w.buf.Bytes())
	w.buf.Reset()
	return errors.Wrap(err, "flushing metadata file")
}

// Close flushes pending entries and closes the file.
func (w *MetaDataFileWriter) Close() error {
	if err := w.Flush(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

func commandBody(cmd types.Command) ([]byte, error) {
	value, err := types.MarshalData(cmd.Value)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteByte(uint8(cmd.Op))
	binary.Write(&buf, binary.BigEndian, uint16(len(cmd.Key)))
	buf.WriteString(cmd.Key)
	buf.Write(value)
	return buf.Bytes(), nil
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	binary.Write(buf, binary.BigEndian, uint32(len(b)))
	buf.Write(b)
}
