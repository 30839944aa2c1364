package repository

import (
	"strings"
	"testing"
)

func TestListQuery(t *testing.T) {
	cause := "FOLLOWING TOO CLOSELY"
	crashType := "ANGLE"

	tests := []struct {
		name     string
		filter   CrashFilter
		wantTail string
		wantArgs []interface{}
	}{
		{
			name:     "no filter",
			filter:   CrashFilter{},
			wantTail: "FROM crashes ORDER BY id",
			wantArgs: nil,
		},
		{
			name:     "cause with paging",
			filter:   CrashFilter{PrimaryCause: &cause, Limit: 10, Offset: 20},
			wantTail: "FROM crashes WHERE prim_contributory_cause = $1 ORDER BY id LIMIT $2 OFFSET $3",
			wantArgs: []interface{}{cause, 10, 20},
		},
		{
			name:     "both filters",
			filter:   CrashFilter{PrimaryCause: &cause, CrashType: &crashType, Offset: 5},
			wantTail: "WHERE prim_contributory_cause = $1 AND first_crash_type = $2 ORDER BY id OFFSET $3",
			wantArgs: []interface{}{cause, crashType, 5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := listQuery(tt.filter)
			if !strings.HasSuffix(query, tt.wantTail) {
				t.Errorf("query = %q, want suffix %q", query, tt.wantTail)
			}
			if !strings.HasPrefix(query, "SELECT id, crash_record_id") {
				t.Errorf("query = %q, want id column first", query)
			}
			if len(args) != len(tt.wantArgs) {
				t.Fatalf("args = %v, want %v", args, tt.wantArgs)
			}
			for i := range args {
				if args[i] != tt.wantArgs[i] {
					t.Errorf("args[%d] = %v, want %v", i, args[i], tt.wantArgs[i])
				}
			}
		})
	}
}

func TestWhereClause_Empty(t *testing.T) {
	where, args := whereClause(CrashFilter{Limit: 3})
	if where != "" || args != nil {
		t.Errorf("whereClause = %q %v, want empty", where, args)
	}
}
