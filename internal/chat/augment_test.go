package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAugmenters(t *testing.T) {
	tests := []struct {
		name string
		aug  Augmenter
		want string
	}{
		{name: "none", aug: NoAugmentation{}, want: "hello"},
		{name: "no document", aug: DocumentReference{}, want: "hello"},
		{name: "path only", aug: DocumentReference{Path: "a.md"}, want: "hello\n\nCurrent document: a.md"},
		{
			name: "line and selection",
			aug:  DocumentReference{Path: "daily/2025-03-01.md", Line: 4, Selection: "buy milk"},
			want: "hello\n\nCurrent document: daily/2025-03-01.md\nCurrent line: 4\nSelected text: \"buy milk\"",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.aug.Augment("hello"))
		})
	}
}
