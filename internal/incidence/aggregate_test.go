package incidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acssjr/examscan/internal/models"
)

func q(path ...string) models.Question {
	return models.Question{Path: path}
}

func TestAggregateAdHocFirstEncounterOrder(t *testing.T) {
	// First appearances: B (question 1), A (question 2), C (question 5).
	questions := []models.Question{
		q("B"), q("A"), q("B"), q("A"), q("C"),
	}

	nodes := AggregateAdHoc(questions)

	require.Len(t, nodes, 3)
	assert.Equal(t, "B", nodes[0].Name)
	assert.Equal(t, "A", nodes[1].Name)
	assert.Equal(t, "C", nodes[2].Name)
}

func TestAggregateAdHocUnclassified(t *testing.T) {
	questions := []models.Question{
		q("Math"), q("Math"), q("Law"), q(),
	}

	nodes := AggregateAdHoc(questions)

	require.Len(t, nodes, 3)
	assert.Equal(t, "Math", nodes[0].Name)
	assert.Equal(t, 2, nodes[0].Count)
	assert.Equal(t, "Law", nodes[1].Name)
	assert.Equal(t, 1, nodes[1].Count)
	assert.Equal(t, UnclassifiedLabel, nodes[2].Name)
	assert.Equal(t, 1, nodes[2].Count)

	// Totals reconcile.
	sum := 0
	for _, n := range nodes {
		sum += n.Count
	}
	assert.Equal(t, len(questions), sum)
}

func TestAggregateAdHocEmpty(t *testing.T) {
	assert.Empty(t, AggregateAdHoc(nil))
	assert.Empty(t, AggregateAdHoc([]models.Question{}))
}

func TestPercentageIsShareOfWholeCorpus(t *testing.T) {
	// 3 of 12 questions => 25.0% regardless of depth.
	questions := make([]models.Question, 0, 12)
	for i := 0; i < 3; i++ {
		questions = append(questions, q("A", "A1"))
	}
	for i := 0; i < 9; i++ {
		questions = append(questions, q("B"))
	}

	skeleton := []*Skeleton{
		{Name: "A", Children: []*Skeleton{{Name: "A1"}}},
		{Name: "B"},
	}

	nodes := Aggregate(questions, skeleton)

	require.Len(t, nodes, 2)
	assert.Equal(t, 3, nodes[0].Count)
	assert.InDelta(t, 25.0, nodes[0].Percentage, 0.001)
	// Child percentage is also a share of the whole corpus, not of siblings.
	require.Len(t, nodes[0].Children, 1)
	assert.InDelta(t, 25.0, nodes[0].Children[0].Percentage, 0.001)
	assert.InDelta(t, 75.0, nodes[1].Percentage, 0.001)
}

func TestPercentageRounding(t *testing.T) {
	questions := []models.Question{q("A"), q("B"), q("B")}
	nodes := AggregateAdHoc(questions)

	require.Len(t, nodes, 2)
	assert.InDelta(t, 33.3, nodes[0].Percentage, 0.001)
	assert.InDelta(t, 66.7, nodes[1].Percentage, 0.001)
}

func TestAggregateFollowsSkeletonOrder(t *testing.T) {
	// Authored order encodes the syllabus structure; counts must not
	// re-sort it.
	skeleton := []*Skeleton{
		{Name: "Rare"},
		{Name: "Common"},
	}
	questions := []models.Question{
		q("Common"), q("Common"), q("Common"), q("Rare"),
	}

	nodes := Aggregate(questions, skeleton)

	require.Len(t, nodes, 2)
	assert.Equal(t, "Rare", nodes[0].Name)
	assert.Equal(t, 1, nodes[0].Count)
	assert.Equal(t, "Common", nodes[1].Name)
	assert.Equal(t, 3, nodes[1].Count)
}

func TestAggregateParentCountsAreSubtreeSums(t *testing.T) {
	skeleton := []*Skeleton{
		{Name: "Law", Children: []*Skeleton{
			{Name: "Civil"},
			{Name: "Criminal"},
		}},
	}
	questions := []models.Question{
		q("Law", "Civil"), q("Law", "Civil"), q("Law", "Criminal"),
	}

	nodes := Aggregate(questions, skeleton)

	require.Len(t, nodes, 1)
	law := nodes[0]
	assert.Equal(t, 3, law.Count)
	require.Len(t, law.Children, 2)
	assert.Equal(t, 2, law.Children[0].Count)
	assert.Equal(t, 1, law.Children[1].Count)
	assert.Equal(t, law.Count, law.Children[0].Count+law.Children[1].Count)
}

func TestAggregateUnmatchedPathsFallToUnclassified(t *testing.T) {
	skeleton := []*Skeleton{{Name: "Math"}}
	questions := []models.Question{
		q("Math"),
		q("Alchemy"), // not in the skeleton
		q(),          // no classification at all
	}

	nodes := Aggregate(questions, skeleton)

	require.Len(t, nodes, 2)
	assert.Equal(t, "Math", nodes[0].Name)
	assert.Equal(t, 1, nodes[0].Count)
	assert.Equal(t, UnclassifiedLabel, nodes[1].Name)
	assert.Equal(t, 2, nodes[1].Count)

	sum := 0
	for _, n := range nodes {
		sum += n.Count
	}
	assert.Equal(t, len(questions), sum)
}

func TestAggregateDeepUnknownSegmentCountsAtNearestNode(t *testing.T) {
	skeleton := []*Skeleton{
		{Name: "Law", Children: []*Skeleton{{Name: "Civil"}}},
	}
	// "Contracts" is below the skeleton's resolution; the question counts
	// at Civil rather than vanishing.
	questions := []models.Question{q("Law", "Civil", "Contracts")}

	nodes := Aggregate(questions, skeleton)

	require.Len(t, nodes, 1)
	assert.Equal(t, 1, nodes[0].Count)
	assert.Equal(t, 1, nodes[0].Children[0].Count)
}

func TestAggregateEmptyQuestionsWithSkeleton(t *testing.T) {
	skeleton := []*Skeleton{{Name: "Math"}}
	assert.Empty(t, Aggregate(nil, skeleton))
}

func TestAggregateNilSkeletonFallsBackToAdHoc(t *testing.T) {
	questions := []models.Question{q("B"), q("A")}
	nodes := Aggregate(questions, nil)

	require.Len(t, nodes, 2)
	assert.Equal(t, "B", nodes[0].Name)
	assert.Equal(t, "A", nodes[1].Name)
}

func TestTopN(t *testing.T) {
	nodes := []*Node{
		{Name: "A", Count: 2},
		{Name: "B", Count: 5},
		{Name: "C", Count: 2},
		{Name: "D", Count: 7},
	}

	top := TopN(nodes, 3)

	require.Len(t, top, 3)
	assert.Equal(t, "D", top[0].Name)
	assert.Equal(t, "B", top[1].Name)
	// A and C tie on count; A was encountered first.
	assert.Equal(t, "A", top[2].Name)

	// Input order untouched.
	assert.Equal(t, "A", nodes[0].Name)
	assert.Equal(t, "D", nodes[3].Name)
}

func TestTopNLargerThanInput(t *testing.T) {
	nodes := []*Node{{Name: "A", Count: 1}}
	assert.Len(t, TopN(nodes, 10), 1)
}
