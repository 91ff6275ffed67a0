package runner

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
)

// ergastPageLimit is passed on every Ergast request so a season never
// spans multiple pages.
const ergastPageLimit = "1000"

// APISportsJobs returns the fixed job list for one season pull against
// API-Sports. Races and standings take a season parameter; circuits,
// drivers and teams are master data and do not — the upstream rejects a
// season there. This table is the single place that knowledge lives.
func APISportsJobs(season, outDir string) []Job {
	withSeason := url.Values{"season": []string{season}}

	return []Job{
		{Name: "seasons", Route: "seasons", OutPath: filepath.Join(outDir, "season.json")},

		{Name: "races", Route: "races", Params: withSeason, OutPath: filepath.Join(outDir, "races.json")},
		{Name: "standings_drivers", Route: "rankings/drivers", Params: withSeason, OutPath: filepath.Join(outDir, "standings_drivers.json")},
		{Name: "standings_teams", Route: "rankings/teams", Params: withSeason, OutPath: filepath.Join(outDir, "standings_teams.json")},

		{Name: "circuits", Route: "circuits", OutPath: filepath.Join(outDir, "circuits.json")},
		{Name: "drivers", Route: "drivers", OutPath: filepath.Join(outDir, "drivers.json")},
		{Name: "teams", Route: "teams", OutPath: filepath.Join(outDir, "teams.json")},
	}
}

// RaceResultJob builds one fan-out job fetching the results of a single
// race. Route and parameter name are configurable because the upstream
// has renamed both over time.
func RaceResultJob(route, param string, raceID int64, outDir string) Job {
	id := strconv.FormatInt(raceID, 10)
	return Job{
		Name:    "race_results/" + id,
		Route:   route,
		Params:  url.Values{param: []string{id}},
		OutPath: filepath.Join(outDir, "race_results", id+".json"),
	}
}

// ErgastYearJobs returns the job list for one season of the Ergast
// historical archive: races calendar, both standings tables, and
// optionally the season-level results file.
func ErgastYearJobs(year int, yearDir string, withResults bool) []Job {
	limit := url.Values{"limit": []string{ergastPageLimit}}

	jobs := []Job{
		{Name: "races", Route: fmt.Sprintf("%d.json", year), Params: limit, OutPath: filepath.Join(yearDir, "races.json")},
		{Name: "standings_drivers", Route: fmt.Sprintf("%d/driverStandings.json", year), Params: limit, OutPath: filepath.Join(yearDir, "standings_drivers.json")},
		{Name: "standings_teams", Route: fmt.Sprintf("%d/constructorStandings.json", year), Params: limit, OutPath: filepath.Join(yearDir, "standings_teams.json")},
	}

	if withResults {
		jobs = append(jobs, Job{
			Name:    "results",
			Route:   fmt.Sprintf("%d/results.json", year),
			Params:  limit,
			OutPath: filepath.Join(yearDir, "results.json"),
		})
	}

	return jobs
}

// ErgastRoundJob builds one fan-out job fetching the results of a single
// round of a season.
func ErgastRoundJob(year, round int, yearDir string) Job {
	return Job{
		Name:    fmt.Sprintf("race_results/%d", round),
		Route:   fmt.Sprintf("%d/%d/results.json", year, round),
		Params:  url.Values{"limit": []string{ergastPageLimit}},
		OutPath: filepath.Join(yearDir, "race_results", fmt.Sprintf("%d.json", round)),
	}
}
