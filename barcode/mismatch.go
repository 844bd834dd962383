package barcode

// mutations is the alphabet substituted into a barcode when expanding
// its neighbourhood.
var mutations = []byte{'A', 'C', 'G', 'T', 'N'}

// mismatches returns input and every sequence reachable from it by at
// most distance substitutions over mutations. Positions holding a
// character outside the alphabet are left alone.
func mismatches(input string, distance int) (out []string) {
	toCheck := []string{input}
	seen := make(map[string]struct{}) // avoid double-counting

	for ; distance >= 0; distance-- {
		nextCheck := make([]string, 0, len(toCheck)*len(input)*(len(mutations)-1))

		for _, curBC := range toCheck {
			seen[curBC] = struct{}{}
			if distance == 0 {
				continue
			}
			buf := []byte(curBC)
			for i, c := range buf {
				switch c {
				case 'A', 'C', 'G', 'T', 'N':
					for _, replacement := range mutations {
						if replacement == c {
							continue
						}
						buf[i] = replacement
						newBC := string(buf)
						if _, alreadySeen := seen[newBC]; !alreadySeen {
							nextCheck = append(nextCheck, newBC)
						}
					}
					buf[i] = c
				default:
					// nothing
				}
			}
		}
		toCheck = nextCheck
	}
	out = make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	return out
}
