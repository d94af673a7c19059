package scanner

// StringField returns the quoted value of "key" in a flat JSON object
// without decoding it. Escaped quotes inside the value are not supported.
func StringField(payload []byte, key string) ([]byte, bool) {
	i, ok := valueStart(payload, key)
	if !ok || payload[i] != '"' {
		return nil, false
	}
	i++
	start := i
	for i < len(payload) && payload[i] != '"' {
		i++
	}
	if i >= len(payload) {
		return nil, false
	}
	return payload[start:i], true
}

// NumberField returns the raw digits of the numeric value of "key".
func NumberField(payload []byte, key string) ([]byte, bool) {
	i, ok := valueStart(payload, key)
	if !ok {
		return nil, false
	}
	start := i
	for i < len(payload) && isNumber(payload[i]) {
		i++
	}
	if i == start {
		return nil, false
	}
	return payload[start:i], true
}

func valueStart(payload []byte, key string) (int, bool) {
	idx := indexOfKey(payload, key)
	if idx < 0 {
		return 0, false
	}
	i := idx + len(key) + 2
	for i < len(payload) && IsSpace(payload[i]) {
		i++
	}
	if i >= len(payload) || payload[i] != ':' {
		return 0, false
	}
	i++
	for i < len(payload) && IsSpace(payload[i]) {
		i++
	}
	if i >= len(payload) {
		return 0, false
	}
	return i, true
}

// indexOfKey finds "key" used as an object key, skipping matches inside
// values.
func indexOfKey(payload []byte, key string) int {
	from := 0
	for {
		idx := IndexOf(payload[from:], key)
		if idx < 0 {
			return -1
		}
		idx += from
		end := idx + len(key)
		if idx > 0 && payload[idx-1] == '"' && end < len(payload) && payload[end] == '"' {
			j := end + 1
			for j < len(payload) && IsSpace(payload[j]) {
				j++
			}
			if j < len(payload) && payload[j] == ':' {
				return idx - 1
			}
		}
		from = idx + 1
	}
}

func IndexOf(payload []byte, key string) int {
	if len(key) == 0 || len(payload) < len(key) {
		return -1
	}
outer:
	for i := 0; i <= len(payload)-len(key); i++ {
		for j := 0; j < len(key); j++ {
			if payload[i+j] != key[j] {
				continue outer
			}
		}
		return i
	}
	return -1
}

func IsSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func isNumber(b byte) bool {
	return (b >= '0' && b <= '9') || b == '-' || b == '.' || b == 'e' || b == 'E' || b == '+'
}
