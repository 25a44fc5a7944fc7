package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"math"
	"reflect"
	"sort"
	"strconv"
)

// Identity names a registered process function: the stable qualified name
// plus the version marker recorded at registration.
type Identity struct {
	Name    string
	Version string
}

// String renders the identity in "name@version" form, the form stored next
// to cached results for verification.
func (id Identity) String() string {
	return id.Name + "@" + id.Version
}

// Inputs are the call arguments of a process function. Args are positional
// and order-dependent; Kwargs are named and order-independent.
type Inputs struct {
	Args   []any
	Kwargs map[string]any
}

// Hash computes the content hash of one invocation. Two calls hash equal
// exactly when the function identity and the normalized inputs are equal:
// kwarg order never matters, positional order always does, and numeric
// values hash the same whether they arrive as Go ints or as JSON float64s.
func Hash(id Identity, in Inputs) (string, error) {
	h := sha256.New()
	fmt.Fprintf(h, "arbor.fn.v1|%s|", id.String())

	if err := writeValue(h, in.Args); err != nil {
		return "", fmt.Errorf("failed to hash positional inputs: %w", err)
	}
	if err := writeValue(h, in.Kwargs); err != nil {
		return "", fmt.Errorf("failed to hash named inputs: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// writeValue appends a canonical, self-delimiting encoding of v to the hash.
func writeValue(h hash.Hash, v any) error {
	switch val := v.(type) {
	case nil:
		fmt.Fprint(h, "n;")
		return nil
	case bool:
		fmt.Fprintf(h, "b:%t;", val)
		return nil
	case string:
		fmt.Fprintf(h, "s:%d:%s;", len(val), val)
		return nil
	case json.Number:
		if i, err := val.Int64(); err == nil {
			writeInt(h, i)
			return nil
		}
		f, err := val.Float64()
		if err != nil {
			return fmt.Errorf("unhashable number %q", val.String())
		}
		writeFloat(h, f)
		return nil
	case float32:
		writeFloat(h, float64(val))
		return nil
	case float64:
		writeFloat(h, val)
		return nil
	case int:
		writeInt(h, int64(val))
		return nil
	case int8:
		writeInt(h, int64(val))
		return nil
	case int16:
		writeInt(h, int64(val))
		return nil
	case int32:
		writeInt(h, int64(val))
		return nil
	case int64:
		writeInt(h, val)
		return nil
	case uint:
		writeUint(h, uint64(val))
		return nil
	case uint8:
		writeUint(h, uint64(val))
		return nil
	case uint16:
		writeUint(h, uint64(val))
		return nil
	case uint32:
		writeUint(h, uint64(val))
		return nil
	case uint64:
		writeUint(h, val)
		return nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		fmt.Fprintf(h, "l:%d[", rv.Len())
		for i := 0; i < rv.Len(); i++ {
			if err := writeValue(h, rv.Index(i).Interface()); err != nil {
				return err
			}
		}
		fmt.Fprint(h, "];")
		return nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("unhashable map key type %s", rv.Type().Key())
		}
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		fmt.Fprintf(h, "m:%d{", len(keys))
		for _, k := range keys {
			fmt.Fprintf(h, "s:%d:%s=", len(k), k)
			if err := writeValue(h, rv.MapIndex(reflect.ValueOf(k)).Interface()); err != nil {
				return err
			}
		}
		fmt.Fprint(h, "};")
		return nil
	}
	return fmt.Errorf("unhashable input type %T", v)
}

// writeInt and writeFloat share one encoding for integral values, so 42
// and 42.0 (a JSON round-trip artifact) produce the same hash.
func writeInt(h hash.Hash, i int64) {
	fmt.Fprintf(h, "i:%d;", i)
}

func writeUint(h hash.Hash, u uint64) {
	if u <= math.MaxInt64 {
		writeInt(h, int64(u))
		return
	}
	fmt.Fprintf(h, "u:%d;", u)
}

func writeFloat(h hash.Hash, f float64) {
	if f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) < math.MaxInt64 {
		writeInt(h, int64(f))
		return
	}
	fmt.Fprintf(h, "f:%s;", strconv.FormatFloat(f, 'g', -1, 64))
}
