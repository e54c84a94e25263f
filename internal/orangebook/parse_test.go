package orangebook

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const productsSample = `Ingredient~DF;Route~Trade_Name~Applicant~Strength~Appl_Type~Appl_No~Product_No~TE_Code~Approval_Date~RLD~RS~Type~Applicant_Full_Name
APIXABAN~TABLET;ORAL~ELIQUIS~BMS~2.5MG~N~202155~001~AB~Dec 28, 2012~Yes~Yes~RX~BRISTOL MYERS SQUIBB
USTEKINUMAB~INJECTABLE;SUBCUTANEOUS~STELARA~JANSSEN~45MG/0.5ML~N~125261~001~~Sep 25, 2009~Yes~Yes~RX~JANSSEN BIOTECH
~TABLET;ORAL~~NOAPP~10MG~N~~001~~Jan 1, 2000~No~No~RX~EMPTY ROW
`

const patentsSample = `Appl_Type~Appl_No~Product_No~Patent_No~Patent_Expire_Date_Text~Drug_Substance_Flag~Drug_Product_Flag~Patent_Use_Code~Delist_Flag~Submission_Date
N~202155~001~6967208~Feb 24, 2023~Y~~~~Dec 17, 2012
N~202155~001~9326945~Nov 21, 2026~~Y~~~Jun 24, 2015
N~125261~001~7279157~not a date~Y~~~~Jan 5, 2010
`

func TestParseProducts(t *testing.T) {
	products, err := ParseProducts(strings.NewReader(productsSample))
	require.NoError(t, err)
	require.Len(t, products, 2, "rows without trade name or appl no are dropped")

	assert.Equal(t, "ELIQUIS", products[0].TradeName)
	assert.Equal(t, "202155", products[0].ApplNo)
	assert.Equal(t, "STELARA", products[1].TradeName)
}

func TestParseProductsMissingColumn(t *testing.T) {
	_, err := ParseProducts(strings.NewReader("A~B~C\n1~2~3\n"))
	assert.Error(t, err)
}

func TestParsePatents(t *testing.T) {
	patents, err := ParsePatents(strings.NewReader(patentsSample))
	require.NoError(t, err)
	require.Len(t, patents, 3)

	require.NotNil(t, patents[0].Expiry)
	assert.Equal(t, time.Date(2023, 2, 24, 0, 0, 0, 0, time.UTC), *patents[0].Expiry)
	require.NotNil(t, patents[1].Expiry)
	assert.Equal(t, time.Date(2026, 11, 21, 0, 0, 0, 0, time.UTC), *patents[1].Expiry)
	// 无法解析的到期日保留记录但 Expiry 置 nil
	assert.Nil(t, patents[2].Expiry)
}

func TestParseExpiry(t *testing.T) {
	tests := []struct {
		input string
		want  *time.Time
	}{
		{"Feb 24, 2023", timePtr(2023, 2, 24)},
		{"2023-02-24", timePtr(2023, 2, 24)},
		{"02/24/2023", timePtr(2023, 2, 24)},
		{"  Feb 24, 2023  ", timePtr(2023, 2, 24)},
		{"", nil},
		{"garbage", nil},
		{"24 Feb 2023", nil},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseExpiry(tt.input)
			if tt.want == nil {
				assert.Nil(t, got)
			} else {
				require.NotNil(t, got)
				assert.True(t, got.Equal(*tt.want))
			}
		})
	}
}

func timePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}
