package projector

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Shr1mpTop/Singapore-Major-Fan-Consensus-Protocol/internal/logger"
	"github.com/Shr1mpTop/Singapore-Major-Fan-Consensus-Protocol/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.UserVote{}, &models.Team{}))
	return db
}

func storeVote(t *testing.T, db *gorm.DB, hash, ts, addr string, teamID uint, amount string) models.UserVote {
	t.Helper()
	vote := models.UserVote{
		Hash:        hash,
		TimeStamp:   ts,
		UserAddress: addr,
		TeamID:      teamID,
		AmountWei:   amount,
	}
	require.NoError(t, db.Create(&vote).Error)
	return vote
}

func loadTeam(t *testing.T, db *gorm.DB, id uint) models.Team {
	t.Helper()
	var team models.Team
	require.NoError(t, db.First(&team, id).Error)
	return team
}

func TestApplyVoteCreatesTeamLazily(t *testing.T) {
	db := openTestDB(t)
	p := New(db, logger.NewNop())

	vote := storeVote(t, db, "0x01", "1", "0xaa", 4, "1000")
	require.NoError(t, p.ApplyVote(vote))

	team := loadTeam(t, db, 4)
	assert.Equal(t, "Team 4", team.Name)
	assert.Equal(t, "1000", team.TotalVoteAmount)
	assert.Equal(t, 1, team.SupporterCount)
}

func TestApplyVoteAccumulates(t *testing.T) {
	db := openTestDB(t)
	p := New(db, logger.NewNop())

	require.NoError(t, p.ApplyVote(storeVote(t, db, "0x01", "1", "0xaa", 4, "1000")))
	require.NoError(t, p.ApplyVote(storeVote(t, db, "0x02", "2", "0xbb", 4, "500")))
	require.NoError(t, p.ApplyVote(storeVote(t, db, "0x03", "3", "0xaa", 4, "250")))

	team := loadTeam(t, db, 4)
	assert.Equal(t, "1750", team.TotalVoteAmount)
	assert.Equal(t, 2, team.SupporterCount, "repeat voter counts once")
}

func TestApplyVoteKeepsSeededName(t *testing.T) {
	db := openTestDB(t)
	p := New(db, logger.NewNop())
	require.NoError(t, db.Create(&models.Team{ID: 2, Name: "Spirit", TotalVoteAmount: "0"}).Error)

	require.NoError(t, p.ApplyVote(storeVote(t, db, "0x01", "1", "0xaa", 2, "77")))

	team := loadTeam(t, db, 2)
	assert.Equal(t, "Spirit", team.Name)
	assert.Equal(t, "77", team.TotalVoteAmount)
}

func TestRebuildAllMatchesIncremental(t *testing.T) {
	db := openTestDB(t)
	p := New(db, logger.NewNop())

	votes := []models.UserVote{
		storeVote(t, db, "0x01", "1", "0xaa", 1, "1000000000000000000"),
		storeVote(t, db, "0x02", "2", "0xbb", 1, "3"),
		storeVote(t, db, "0x03", "3", "0xaa", 2, "500"),
		storeVote(t, db, "0x04", "4", "0xcc", 2, "500"),
		storeVote(t, db, "0x05", "5", "0xaa", 2, "1"),
	}
	for _, v := range votes {
		require.NoError(t, p.ApplyVote(v))
	}
	incremental1 := loadTeam(t, db, 1)
	incremental2 := loadTeam(t, db, 2)

	pool, err := p.RebuildAll()
	require.NoError(t, err)

	rebuilt1 := loadTeam(t, db, 1)
	rebuilt2 := loadTeam(t, db, 2)
	assert.Equal(t, incremental1.TotalVoteAmount, rebuilt1.TotalVoteAmount)
	assert.Equal(t, incremental1.SupporterCount, rebuilt1.SupporterCount)
	assert.Equal(t, incremental2.TotalVoteAmount, rebuilt2.TotalVoteAmount)
	assert.Equal(t, incremental2.SupporterCount, rebuilt2.SupporterCount)
	assert.Equal(t, "1000000000000001004", pool.String())
}

func TestApplyVoteAfterRebuildConverges(t *testing.T) {
	db := openTestDB(t)
	p := New(db, logger.NewNop())

	v1 := storeVote(t, db, "0x01", "1", "0xaa", 1, "100")
	storeVote(t, db, "0x02", "2", "0xbb", 1, "200")

	// A rebuild that already covered v1 must not be double-folded when the
	// incremental apply for v1 lands afterwards.
	_, err := p.RebuildAll()
	require.NoError(t, err)
	require.NoError(t, p.ApplyVote(v1))

	team := loadTeam(t, db, 1)
	assert.Equal(t, "300", team.TotalVoteAmount)
	assert.Equal(t, 2, team.SupporterCount)
}

func TestApplyAndRebuildInterleave(t *testing.T) {
	db := openTestDB(t)
	p := New(db, logger.NewNop())

	votes := make([]models.UserVote, 0, 20)
	for i := 0; i < 20; i++ {
		votes = append(votes, storeVote(t, db,
			fmt.Sprintf("0x%02d", i), fmt.Sprintf("%d", i),
			fmt.Sprintf("0x%02d", i%5), uint(i%2+1), "10"))
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(votes)+4)
	for _, v := range votes {
		wg.Add(1)
		go func(v models.UserVote) {
			defer wg.Done()
			errs <- p.ApplyVote(v)
		}(v)
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.RebuildAll()
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	for _, id := range []uint{1, 2} {
		team := loadTeam(t, db, id)
		assert.Equal(t, "100", team.TotalVoteAmount)
		assert.Equal(t, 5, team.SupporterCount)
	}
}

func TestRebuildAllRepairsDrift(t *testing.T) {
	db := openTestDB(t)
	p := New(db, logger.NewNop())

	storeVote(t, db, "0x01", "1", "0xaa", 1, "100")
	storeVote(t, db, "0x02", "2", "0xbb", 1, "200")
	require.NoError(t, db.Create(&models.Team{
		ID: 1, Name: "Vitality", TotalVoteAmount: "999999", SupporterCount: 42,
	}).Error)

	_, err := p.RebuildAll()
	require.NoError(t, err)

	team := loadTeam(t, db, 1)
	assert.Equal(t, "300", team.TotalVoteAmount)
	assert.Equal(t, 2, team.SupporterCount)
	assert.Equal(t, "Vitality", team.Name, "rebuild keeps names")
}

func TestRebuildAllZeroesVotelessTeams(t *testing.T) {
	db := openTestDB(t)
	p := New(db, logger.NewNop())

	require.NoError(t, db.Create(&models.Team{
		ID: 3, Name: "ENCE", TotalVoteAmount: "500", SupporterCount: 5,
	}).Error)

	pool, err := p.RebuildAll()
	require.NoError(t, err)
	assert.Equal(t, "0", pool.String())

	team := loadTeam(t, db, 3)
	assert.Equal(t, "0", team.TotalVoteAmount)
	assert.Equal(t, 0, team.SupporterCount)
	assert.Equal(t, "ENCE", team.Name)
}

func TestRebuildAllIdempotent(t *testing.T) {
	db := openTestDB(t)
	p := New(db, logger.NewNop())

	storeVote(t, db, "0x01", "1", "0xaa", 1, "100")

	first, err := p.RebuildAll()
	require.NoError(t, err)
	second, err := p.RebuildAll()
	require.NoError(t, err)
	assert.Equal(t, first.String(), second.String())

	team := loadTeam(t, db, 1)
	assert.Equal(t, "100", team.TotalVoteAmount)
	assert.Equal(t, 1, team.SupporterCount)
}
