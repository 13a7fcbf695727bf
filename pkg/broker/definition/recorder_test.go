package definition

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/jabolina/go-broker/pkg/broker/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_HeaderAndEntryLayout(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "meta.dat")
	w, err := NewMetaDataFileWriter(fileName)
	require.NoError(t, err)

	require.NoError(t, w.Write(types.NewDataMessage("a/b", types.Count(42))))
	require.NoError(t, w.Close())

	raw, err := os.ReadFile(fileName)
	require.NoError(t, err)

	// Header: magic and version.
	require.GreaterOrEqual(t, len(raw), 5)
	assert.Equal(t, RecorderMagic, binary.BigEndian.Uint32(raw[:4]))
	assert.Equal(t, RecorderVersion, raw[4])

	// First entry interns the topic.
	offset := 5
	assert.Equal(t, entryNewTopic, raw[offset])
	assert.Equal(t, uint16(0), binary.BigEndian.Uint16(raw[offset+1:offset+3]))
	topicLen := int(binary.BigEndian.Uint16(raw[offset+3 : offset+5]))
	assert.Equal(t, "a/b", string(raw[offset+5:offset+5+topicLen]))

	// Second entry references it by id and carries the payload.
	offset += 5 + topicLen
	assert.Equal(t, entryDataMessage, raw[offset])
	assert.Equal(t, uint16(0), binary.BigEndian.Uint16(raw[offset+1:offset+3]))
	bodyLen := int(binary.BigEndian.Uint32(raw[offset+3 : offset+7]))
	body := raw[offset+7 : offset+7+bodyLen]

	restored, err := types.UnmarshalData(body)
	require.NoError(t, err)
	assert.True(t, types.Equal(restored, types.Count(42)))
}

func TestRecorder_TopicsAreInternedOnce(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "meta.dat")
	w, err := NewMetaDataFileWriter(fileName)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, w.Write(types.NewDataMessage("same/topic", types.Count(uint64(i)))))
	}
	require.NoError(t, w.Close())

	raw, err := os.ReadFile(fileName)
	require.NoError(t, err)

	newTopicEntries := 0
	for offset := 5; offset < len(raw); {
		switch raw[offset] {
		case entryNewTopic:
			newTopicEntries++
			topicLen := int(binary.BigEndian.Uint16(raw[offset+3 : offset+5]))
			offset += 5 + topicLen
		case entryDataMessage, entryCommandMessage:
			bodyLen := int(binary.BigEndian.Uint32(raw[offset+3 : offset+7]))
			offset += 7 + bodyLen
		default:
			t.Fatalf("unknown entry type %d at offset %d", raw[offset], offset)
		}
	}
	assert.Equal(t, 1, newTopicEntries)
}

func TestRecorder_CommandEntryRoundTrip(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "meta.dat")
	w, err := NewMetaDataFileWriter(fileName)
	require.NoError(t, err)

	cmd := types.Command{Op: types.CommandPut, Key: "k", Value: types.String("v")}
	require.NoError(t, w.Write(types.NewCommandMessage("store/x", cmd)))
	require.NoError(t, w.Close())

	raw, err := os.ReadFile(fileName)
	require.NoError(t, err)

	// Skip header and the new_topic entry.
	offset := 5
	topicLen := int(binary.BigEndian.Uint16(raw[offset+3 : offset+5]))
	offset += 5 + topicLen

	require.Equal(t, entryCommandMessage, raw[offset])
	bodyLen := int(binary.BigEndian.Uint32(raw[offset+3 : offset+7]))
	body := raw[offset+7 : offset+7+bodyLen]

	assert.Equal(t, uint8(types.CommandPut), body[0])
	keyLen := int(binary.BigEndian.Uint16(body[1:3]))
	assert.Equal(t, "k", string(body[3:3+keyLen]))

	value, err := types.UnmarshalData(body[3+keyLen:])
	require.NoError(t, err)
	assert.True(t, types.Equal(value, types.String("v")))
}

func TestRecorder_ReopenRestoresTopicTable(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "meta.dat")

	w, err := NewMetaDataFileWriter(fileName)
	require.NoError(t, err)
	require.NoError(t, w.Write(types.NewDataMessage("same/topic", types.Count(1))))
	require.NoError(t, w.Close())

	// A second writer on the same file keeps appending: the known
	// topic reuses its id, a fresh one continues the sequence.
	w, err = NewMetaDataFileWriter(fileName)
	require.NoError(t, err)
	require.NoError(t, w.Write(types.NewDataMessage("same/topic", types.Count(2))))
	require.NoError(t, w.Write(types.NewDataMessage("other/topic", types.Count(3))))
	require.NoError(t, w.Close())

	raw, err := os.ReadFile(fileName)
	require.NoError(t, err)
	assert.Equal(t, RecorderMagic, binary.BigEndian.Uint32(raw[:4]))

	type topicEntry struct {
		id   uint16
		name string
	}
	var interned []topicEntry
	var messageTopics []uint16
	for offset := 5; offset < len(raw); {
		switch raw[offset] {
		case entryNewTopic:
			id := binary.BigEndian.Uint16(raw[offset+1 : offset+3])
			topicLen := int(binary.BigEndian.Uint16(raw[offset+3 : offset+5]))
			interned = append(interned, topicEntry{id: id, name: string(raw[offset+5 : offset+5+topicLen])})
			offset += 5 + topicLen
		case entryDataMessage, entryCommandMessage:
			messageTopics = append(messageTopics, binary.BigEndian.Uint16(raw[offset+1:offset+3]))
			bodyLen := int(binary.BigEndian.Uint32(raw[offset+3 : offset+7]))
			offset += 7 + bodyLen
		default:
			t.Fatalf("unknown entry type %d at offset %d", raw[offset], offset)
		}
	}

	// The shared topic was interned exactly once, across both writer
	// instances, and every entry references a consistent id.
	require.Equal(t, []topicEntry{{id: 0, name: "same/topic"}, {id: 1, name: "other/topic"}}, interned)
	assert.Equal(t, []uint16{0, 0, 1}, messageTopics)
}

func TestRecorder_ReopenRejectsForeignFile(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "meta.dat")
	require.NoError(t, os.WriteFile(fileName, []byte("not a metadata file"), 0o644))

	_, err := NewMetaDataFileWriter(fileName)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMetaDataMalformed)
}

func TestRecorder_ReopenRejectsTruncatedFile(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "meta.dat")

	w, err := NewMetaDataFileWriter(fileName)
	require.NoError(t, err)
	require.NoError(t, w.Write(types.NewDataMessage("a", types.Count(1))))
	require.NoError(t, w.Close())

	raw, err := os.ReadFile(fileName)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(fileName, raw[:len(raw)-2], 0o644))

	_, err = NewMetaDataFileWriter(fileName)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMetaDataMalformed)
}

func TestInMemoryStore_ApplyCommands(t *testing.T) {
	s := NewInMemoryStore()

	require.NoError(t, s.Apply(types.Command{Op: types.CommandPut, Key: "a", Value: types.Count(1)}))
	require.NoError(t, s.Apply(types.Command{Op: types.CommandPut, Key: "b", Value: types.Count(2)}))
	require.NoError(t, s.Apply(types.Command{Op: types.CommandErase, Key: "a"}))

	snap := s.Snapshot()
	_, hasA := snap["a"]
	assert.False(t, hasA)
	assert.True(t, types.Equal(snap["b"], types.Count(2)))

	require.NoError(t, s.Apply(types.Command{Op: types.CommandClear}))
	assert.Empty(t, s.Snapshot())

	err := s.Apply(types.Command{Op: 99})
	assert.ErrorIs(t, err, ErrCommandUnknown)
}
