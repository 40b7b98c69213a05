package memory

// matchGlob reports whether key matches pattern under Redis glob rules.
// * and ? match any byte including '/' and ':', [...] takes ranges and a
// leading ^ for negation, and \ escapes the next byte. An unterminated class
// ends with the pattern, and malformed patterns never fail.
func matchGlob(pattern, key string) bool {
	p, k := 0, 0
	for p < len(pattern) {
		switch pattern[p] {
		case '*':
			for p < len(pattern) && pattern[p] == '*' {
				p++
			}
			if p == len(pattern) {
				return true
			}
			for i := k; i <= len(key); i++ {
				if matchGlob(pattern[p:], key[i:]) {
					return true
				}
			}
			return false
		case '?':
			if k == len(key) {
				return false
			}
			p++
			k++
		case '[':
			if k == len(key) {
				return false
			}
			n, ok := matchClass(pattern[p+1:], key[k])
			if !ok {
				return false
			}
			p += 1 + n
			k++
		case '\\':
			if p+1 < len(pattern) {
				p++
			}
			fallthrough
		default:
			if k == len(key) || pattern[p] != key[k] {
				return false
			}
			p++
			k++
		}
	}
	return k == len(key)
}

// matchClass matches b against the class body following '['. It returns the
// bytes consumed, including the closing ']' when present.
func matchClass(class string, b byte) (int, bool) {
	i := 0
	negate := len(class) > 0 && class[0] == '^'
	if negate {
		i++
	}
	matched := false
	for i < len(class) && class[i] != ']' {
		switch {
		case class[i] == '\\' && i+1 < len(class):
			if class[i+1] == b {
				matched = true
			}
			i += 2
		case i+2 < len(class) && class[i+1] == '-':
			lo, hi := class[i], class[i+2]
			if lo > hi {
				lo, hi = hi, lo
			}
			if b >= lo && b <= hi {
				matched = true
			}
			i += 3
		default:
			if class[i] == b {
				matched = true
			}
			i++
		}
	}
	if i < len(class) {
		i++
	}
	return i, matched != negate
}
