package order

import "testing"

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPaid, StatusDelivered, true},
		{StatusDelivered, StatusDelivered, false},
		{StatusDelivered, StatusPaid, false},
		{StatusPaid, StatusPaid, false},
		{Status("refunded"), StatusDelivered, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.want {
				t.Errorf("CanTransition = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStatusValid(t *testing.T) {
	if !StatusPaid.Valid() || !StatusDelivered.Valid() {
		t.Error("known statuses should be valid")
	}
	if Status("").Valid() {
		t.Error("empty status should be invalid")
	}
}
