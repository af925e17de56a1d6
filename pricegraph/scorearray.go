package pricegraph

// ScoreSlots is the width of a ScoreArray: the number of competing edges
// tracked per directed pair.
const ScoreSlots = 5

// scoreEntry is one (score, edge_id) slot.
type scoreEntry struct {
	score  float64
	edgeID EdgeId
}

// ScoreArray holds a sorted top-ScoreSlots list of candidate edges for one
// directed pair, in descending score order. Slot 0 is always the current
// best; empty slots have score 0 and sort to the end.
type ScoreArray struct {
	slots [ScoreSlots]scoreEntry
}

// updateAt overwrites a slot in place. Callers guarantee monotonicity.
func (s *ScoreArray) updateAt(index int, edgeID EdgeId, newScore float64) {
	s.slots[index] = scoreEntry{newScore, edgeID}
}

// insert places (score, edge_id) into the ordered tail, preserving descending
// order; the smallest entry is dropped once the array is full.
func (s *ScoreArray) insert(edgeID EdgeId, newScore float64) {
	insertScore := newScore
	insertEdgeID := edgeID
	for idx := 0; idx < ScoreSlots; idx++ {
		entry := s.slots[idx]
		if entry.score == 0 {
			s.slots[idx] = scoreEntry{insertScore, insertEdgeID}
			break
		} else if insertScore >= entry.score {
			s.slots[idx] = scoreEntry{insertScore, insertEdgeID}
			insertScore = entry.score
			insertEdgeID = entry.edgeID
		}
	}
}

// demote bubbles the current best down to its correct position after its
// score fell to newScore.
func (s *ScoreArray) demote(newScore float64) {
	s.slots[0].score = newScore
	for idx := 0; idx < ScoreSlots-1; idx++ {
		if s.slots[idx+1].score > newScore {
			s.slots[idx], s.slots[idx+1] = s.slots[idx+1], s.slots[idx]
		}
	}
}

// promote places (edge_id, new_score) at slot 0, shifting displaced entries
// down and removing any prior occurrence of edge_id.
func (s *ScoreArray) promote(edgeID EdgeId, newScore float64) {
	insert := scoreEntry{newScore, edgeID}
	for idx := 0; idx < ScoreSlots; idx++ {
		current := s.slots[idx]
		s.slots[idx] = insert
		if current.edgeID == edgeID {
			break
		}
		insert = current
	}
}

// best returns slot 0: (score, edge_id).
func (s *ScoreArray) best() (float64, EdgeId) {
	return s.slots[0].score, s.slots[0].edgeID
}

// runnerUp returns slot 1: (score, edge_id).
func (s *ScoreArray) runnerUp() (float64, EdgeId) {
	return s.slots[1].score, s.slots[1].edgeID
}
