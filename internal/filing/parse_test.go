package filing

import "testing"

func TestExtractText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "simple html",
			input:    "<html><body><p>Revenue grew 10%.</p><p>Costs fell.</p></body></html>",
			expected: "Revenue grew 10%. Costs fell.",
		},
		{
			name:     "script and style dropped",
			input:    "<html><head><style>p{color:red}</style></head><body><script>alert(1)</script><p>Net sales were $383 billion.</p></body></html>",
			expected: "Net sales were $383 billion.",
		},
		{
			name:     "nav header footer aside dropped",
			input:    "<body><nav>Menu</nav><header>Logo</header><p>Risk factors follow.</p><aside>Ad</aside><footer>Legal</footer></body>",
			expected: "Risk factors follow.",
		},
		{
			name:     "whitespace collapsed",
			input:    "<p>Revenue   grew\n\n\t10%.</p>",
			expected: "Revenue grew 10%.",
		},
		{
			name:     "nested elements joined with spaces",
			input:    "<div><span>Item 1A.</span><span>Risk Factors</span></div>",
			expected: "Item 1A. Risk Factors",
		},
		{
			name:     "plain text passthrough",
			input:    "Revenue grew.   Costs\nfell.",
			expected: "Revenue grew. Costs fell.",
		},
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractText(tt.input); got != tt.expected {
				t.Errorf("ExtractText(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}
