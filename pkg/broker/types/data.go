package types

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/netip"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// DataType tags the concrete kind held by a Data value.
type DataType uint8

const (
	NoneType DataType = iota
	BooleanType
	CountType
	IntegerType
	RealType
	StringType
	AddressType
	SubnetType
	PortType
	TimestampType
	TimespanType
	EnumValueType
	SetType
	TableType
	VectorType
)

var ErrUnknownDataType = errors.New("unknown data type")

// Data is a variant value that may hold one of several primitive or
// compound types. Equality is structural, ordering is total (first by
// type, then by value) and hashing is structural.
type Data interface {
	Type() DataType
}

// None is the empty data value.
type None struct{}

// Boolean holds true or false.
type Boolean bool

// Count holds an unsigned 64-bit integer.
type Count uint64

// Integer holds a signed 64-bit integer.
type Integer int64

// Real holds a 64-bit floating point value.
type Real float64

// String holds a sequence of bytes.
type String string

// EnumValue holds the name of an enumeration constant.
type EnumValue string

// Address holds an IPv4 or IPv6 address.
type Address netip.Addr

// Subnet holds an IP prefix.
type Subnet netip.Prefix

// PortProtocol tags the transport protocol of a Port.
type PortProtocol uint8

const (
	UnknownProtocol PortProtocol = iota
	TCP
	UDP
	ICMP
)

// Port holds a transport-layer port number.
type Port struct {
	Number   uint16
	Protocol PortProtocol
}

// Timestamp holds a point in time.
type Timestamp time.Time

// Timespan holds a duration.
type Timespan time.Duration

// Set is an ordered container of unique data values. Use NewSet to
// keep it canonical.
type Set []Data

// TableEntry maps a single key to a value inside a Table.
type TableEntry struct {
	Key   Data
	Value Data
}

// Table is an ordered container mapping unique keys to values. Use
// NewTable to keep it canonical.
type Table []TableEntry

// Vector is a sequential container of data values.
type Vector []Data

func (None) Type() DataType      { return NoneType }
func (Boolean) Type() DataType   { return BooleanType }
func (Count) Type() DataType     { return CountType }
func (Integer) Type() DataType   { return IntegerType }
func (Real) Type() DataType      { return RealType }
func (String) Type() DataType    { return StringType }
func (Address) Type() DataType   { return AddressType }
func (Subnet) Type() DataType    { return SubnetType }
func (Port) Type() DataType      { return PortType }
func (Timestamp) Type() DataType { return TimestampType }
func (Timespan) Type() DataType  { return TimespanType }
func (EnumValue) Type() DataType { return EnumValueType }
func (Set) Type() DataType       { return SetType }
func (Table) Type() DataType     { return TableType }
func (Vector) Type() DataType    { return VectorType }

// NewSet builds a canonical set: elements sorted, duplicates removed.
func NewSet(items ...Data) Set {
	s := make(Set, 0, len(items))
	for _, item := range items {
		s = append(s, item)
	}
	sort.Slice(s, func(i, j int) bool { return Compare(s[i], s[j]) < 0 })
	out := s[:0]
	for i, item := range s {
		if i == 0 || Compare(s[i-1], item) != 0 {
			out = append(out, item)
		}
	}
	return out
}

// Contains reports set membership.
func (s Set) Contains(item Data) bool {
	for _, x := range s {
		if Equal(x, item) {
			return true
		}
	}
	return false
}

// NewTable builds a canonical table: entries sorted by key, a later
// duplicated key wins over an earlier one.
func NewTable(entries ...TableEntry) Table {
	byKey := make(map[uint64][]TableEntry)
	order := make([]TableEntry, 0, len(entries))
	for _, e := range entries {
		h := Hash(e.Key)
		replaced := false
		for i, prev := range byKey[h] {
			if Equal(prev.Key, e.Key) {
				byKey[h][i] = e
				replaced = true
				break
			}
		}
		if !replaced {
			byKey[h] = append(byKey[h], e)
			order = append(order, TableEntry{Key: e.Key})
		}
	}
	t := make(Table, 0, len(order))
	for _, slot := range order {
		h := Hash(slot.Key)
		for _, e := range byKey[h] {
			if Equal(e.Key, slot.Key) {
				t = append(t, e)
				break
			}
		}
	}
	sort.Slice(t, func(i, j int) bool { return Compare(t[i].Key, t[j].Key) < 0 })
	return t
}

// Lookup returns the value stored under the given key.
func (t Table) Lookup(key Data) (Data, bool) {
	for _, e := range t {
		if Equal(e.Key, key) {
			return e.Value, true
		}
	}
	return nil, false
}

// Equal reports structural equality of two data values.
func Equal(a, b Data) bool {
	return Compare(a, b) == 0
}

// Compare imposes a total order on data values: first by type rank,
// then by value. Containers compare lexicographically.
func Compare(a, b Data) int {
	if a == nil {
		a = None{}
	}
	if b == nil {
		b = None{}
	}
	if a.Type() != b.Type() {
		if a.Type() < b.Type() {
			return -1
		}
		return 1
	}
	switch x := a.(type) {
	case None:
		return 0
	case Boolean:
		y := b.(Boolean)
		if x == y {
			return 0
		}
		if !x {
			return -1
		}
		return 1
	case Count:
		return compareOrdered(uint64(x), uint64(b.(Count)))
	case Integer:
		return compareOrdered(int64(x), int64(b.(Integer)))
	case Real:
		return compareOrdered(float64(x), float64(b.(Real)))
	case String:
		return strings.Compare(string(x), string(b.(String)))
	case Address:
		return netip.Addr(x).Compare(netip.Addr(b.(Address)))
	case Subnet:
		y := netip.Prefix(b.(Subnet))
		p := netip.Prefix(x)
		if c := p.Addr().Compare(y.Addr()); c != 0 {
			return c
		}
		return compareOrdered(p.Bits(), y.Bits())
	case Port:
		y := b.(Port)
		if c := compareOrdered(x.Number, y.Number); c != 0 {
			return c
		}
		return compareOrdered(x.Protocol, y.Protocol)
	case Timestamp:
		y := time.Time(b.(Timestamp))
		t := time.Time(x)
		switch {
		case t.Before(y):
			return -1
		case t.After(y):
			return 1
		default:
			return 0
		}
	case Timespan:
		return compareOrdered(time.Duration(x), time.Duration(b.(Timespan)))
	case EnumValue:
		return strings.Compare(string(x), string(b.(EnumValue)))
	case Set:
		return compareSlices(x, b.(Set))
	case Vector:
		return compareSlices(x, b.(Vector))
	case Table:
		y := b.(Table)
		for i := 0; i < len(x) && i < len(y); i++ {
			if c := Compare(x[i].Key, y[i].Key); c != 0 {
				return c
			}
			if c := Compare(x[i].Value, y[i].Value); c != 0 {
				return c
			}
		}
		return compareOrdered(len(x), len(y))
	default:
		return 0
	}
}

func compareOrdered[T int | int64 | uint16 | uint64 | float64 | time.Duration | PortProtocol](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareSlices(a, b []Data) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return compareOrdered(len(a), len(b))
}

// Hash returns a structural hash of the value. Hashing of sets and
// tables combines element hashes commutatively, so it does not depend
// on element ordering.
func Hash(d Data) uint64 {
	if d == nil {
		d = None{}
	}
	h := fnv.New64a()
	fmt.Fprintf(h, "%d:", d.Type())
	switch x := d.(type) {
	case None:
	case Boolean, Count, Integer, Real, String, EnumValue, Port, Timespan:
		fmt.Fprintf(h, "%v", x)
	case Address:
		fmt.Fprint(h, netip.Addr(x).String())
	case Subnet:
		fmt.Fprint(h, netip.Prefix(x).String())
	case Timestamp:
		fmt.Fprint(h, time.Time(x).UnixNano())
	case Set:
		var sum uint64
		for _, item := range x {
			sum += Hash(item)
		}
		fmt.Fprintf(h, "%d:%d", len(x), sum)
	case Table:
		var sum uint64
		for _, e := range x {
			sum += Hash(e.Key) ^ (Hash(e.Value) * 31)
		}
		fmt.Fprintf(h, "%d:%d", len(x), sum)
	case Vector:
		for _, item := range x {
			fmt.Fprintf(h, "%d,", Hash(item))
		}
	}
	return h.Sum64()
}

// ToString renders a data value in human readable form.
func ToString(d Data) string {
	if d == nil {
		d = None{}
	}
	switch x := d.(type) {
	case None:
		return "nil"
	case Boolean:
		if x {
			return "T"
		}
		return "F"
	case Count:
		return strconv.FormatUint(uint64(x), 10)
	case Integer:
		return strconv.FormatInt(int64(x), 10)
	case Real:
		return strconv.FormatFloat(float64(x), 'g', -1, 64)
	case String:
		return string(x)
	case Address:
		return netip.Addr(x).String()
	case Subnet:
		return netip.Prefix(x).String()
	case Port:
		return fmt.Sprintf("%d/%s", x.Number, x.Protocol)
	case Timestamp:
		return time.Time(x).UTC().Format(time.RFC3339Nano)
	case Timespan:
		return time.Duration(x).String()
	case EnumValue:
		return string(x)
	case Set:
		return containerString(x, "{", "}")
	case Vector:
		return containerString(x, "[", "]")
	case Table:
		parts := make([]string, 0, len(x))
		for _, e := range x {
			parts = append(parts, ToString(e.Key)+" -> "+ToString(e.Value))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return "?"
	}
}

func (p PortProtocol) String() string {
	switch p {
	case TCP:
		return "tcp"
	case UDP:
		return "udp"
	case ICMP:
		return "icmp"
	default:
		return "?"
	}
}

func containerString(items []Data, left, right string) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, ToString(item))
	}
	return left + strings.Join(parts, ", ") + right
}

// --- serialization -----------------------------------------------------------

var dataTypeNames = map[DataType]string{
	NoneType:      "none",
	BooleanType:   "boolean",
	CountType:     "count",
	IntegerType:   "integer",
	RealType:      "real",
	StringType:    "string",
	AddressType:   "address",
	SubnetType:    "subnet",
	PortType:      "port",
	TimestampType: "timestamp",
	TimespanType:  "timespan",
	EnumValueType: "enum-value",
	SetType:       "set",
	TableType:     "table",
	VectorType:    "vector",
}

var dataTypesByName = func() map[string]DataType {
	m := make(map[string]DataType, len(dataTypeNames))
	for t, n := range dataTypeNames {
		m[n] = t
	}
	return m
}()

type wireData struct {
	Type string          `json:"@data-type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type wireTableEntry struct {
	Key   json.RawMessage `json:"key"`
	Value json.RawMessage `json:"value"`
}

// MarshalData serializes a data value into its tagged JSON form.
func MarshalData(d Data) ([]byte, error) {
	if d == nil {
		d = None{}
	}
	body, err := marshalBody(d)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireData{Type: dataTypeNames[d.Type()], Data: body})
}

func marshalBody(d Data) (json.RawMessage, error) {
	switch x := d.(type) {
	case None:
		return nil, nil
	case Boolean:
		return json.Marshal(bool(x))
	case Count:
		return json.RawMessage(strconv.FormatUint(uint64(x), 10)), nil
	case Integer:
		return json.RawMessage(strconv.FormatInt(int64(x), 10)), nil
	case Real:
		return json.Marshal(float64(x))
	case String:
		return json.Marshal(string(x))
	case Address:
		return json.Marshal(netip.Addr(x).String())
	case Subnet:
		return json.Marshal(netip.Prefix(x).String())
	case Port:
		return json.Marshal(fmt.Sprintf("%d/%s", x.Number, x.Protocol))
	case Timestamp:
		return json.Marshal(time.Time(x).UTC().Format(time.RFC3339Nano))
	case Timespan:
		return json.RawMessage(strconv.FormatInt(int64(time.Duration(x)), 10)), nil
	case EnumValue:
		return json.Marshal(string(x))
	case Set:
		return marshalSlice(x)
	case Vector:
		return marshalSlice(x)
	case Table:
		entries := make([]wireTableEntry, 0, len(x))
		for _, e := range x {
			k, err := MarshalData(e.Key)
			if err != nil {
				return nil, err
			}
			v, err := MarshalData(e.Value)
			if err != nil {
				return nil, err
			}
			entries = append(entries, wireTableEntry{Key: k, Value: v})
		}
		return json.Marshal(entries)
	default:
		return nil, errors.Wrapf(ErrUnknownDataType, "type %d", d.Type())
	}
}

func marshalSlice(items []Data) (json.RawMessage, error) {
	raw := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		b, err := MarshalData(item)
		if err != nil {
			return nil, err
		}
		raw = append(raw, b)
	}
	return json.Marshal(raw)
}

// UnmarshalData deserializes a data value from its tagged JSON form.
func UnmarshalData(b []byte) (Data, error) {
	var w wireData
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, err
	}
	t, ok := dataTypesByName[w.Type]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownDataType, "tag %q", w.Type)
	}
	switch t {
	case NoneType:
		return None{}, nil
	case BooleanType:
		var v bool
		err := json.Unmarshal(w.Data, &v)
		return Boolean(v), err
	case CountType:
		v, err := strconv.ParseUint(string(w.Data), 10, 64)
		return Count(v), err
	case IntegerType:
		v, err := strconv.ParseInt(string(w.Data), 10, 64)
		return Integer(v), err
	case RealType:
		var v float64
		err := json.Unmarshal(w.Data, &v)
		return Real(v), err
	case StringType:
		var v string
		err := json.Unmarshal(w.Data, &v)
		return String(v), err
	case AddressType:
		var v string
		if err := json.Unmarshal(w.Data, &v); err != nil {
			return nil, err
		}
		addr, err := netip.ParseAddr(v)
		return Address(addr), err
	case SubnetType:
		var v string
		if err := json.Unmarshal(w.Data, &v); err != nil {
			return nil, err
		}
		prefix, err := netip.ParsePrefix(v)
		return Subnet(prefix), err
	case PortType:
		var v string
		if err := json.Unmarshal(w.Data, &v); err != nil {
			return nil, err
		}
		return parsePort(v)
	case TimestampType:
		var v string
		if err := json.Unmarshal(w.Data, &v); err != nil {
			return nil, err
		}
		ts, err := time.Parse(time.RFC3339Nano, v)
		return Timestamp(ts), err
	case TimespanType:
		v, err := strconv.ParseInt(string(w.Data), 10, 64)
		return Timespan(v), err
	case EnumValueType:
		var v string
		err := json.Unmarshal(w.Data, &v)
		return EnumValue(v), err
	case SetType:
		items, err := unmarshalSlice(w.Data)
		if err != nil {
			return nil, err
		}
		return NewSet(items...), nil
	case VectorType:
		items, err := unmarshalSlice(w.Data)
		return Vector(items), err
	case TableType:
		var entries []wireTableEntry
		if err := json.Unmarshal(w.Data, &entries); err != nil {
			return nil, err
		}
		out := make([]TableEntry, 0, len(entries))
		for _, e := range entries {
			k, err := UnmarshalData(e.Key)
			if err != nil {
				return nil, err
			}
			v, err := UnmarshalData(e.Value)
			if err != nil {
				return nil, err
			}
			out = append(out, TableEntry{Key: k, Value: v})
		}
		return NewTable(out...), nil
	default:
		return nil, errors.Wrapf(ErrUnknownDataType, "tag %q", w.Type)
	}
}

func unmarshalSlice(b json.RawMessage) ([]Data, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	items := make([]Data, 0, len(raw))
	for _, r := range raw {
		item, err := UnmarshalData(r)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func parsePort(v string) (Data, error) {
	idx := strings.LastIndex(v, "/")
	if idx < 0 {
		return nil, errors.Errorf("malformed port value %q", v)
	}
	num, err := strconv.ParseUint(v[:idx], 10, 16)
	if err != nil {
		return nil, err
	}
	p := Port{Number: uint16(num)}
	switch v[idx+1:] {
	case "tcp":
		p.Protocol = TCP
	case "udp":
		p.Protocol = UDP
	case "icmp":
		p.Protocol = ICMP
	default:
		p.Protocol = UnknownProtocol
	}
	return p, nil
}
