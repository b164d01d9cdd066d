package core

// levelThresholds are the minimum total points of each level, level 1 first
var levelThresholds = []int{0, 100, 250, 500, 1000, 2000, 3500, 5500, 8000, 12000, 17000, 25000, 35000, 50000, 75000}

// LevelFor returns the level reached with points and the threshold of the next level.
// At the top level the next threshold is the top threshold itself.
func LevelFor(points int) (level, nextLevelPoints int) {
	level = 1
	for i, threshold := range levelThresholds {
		if points >= threshold {
			level = i + 1
		}
	}
	if level < len(levelThresholds) {
		return level, levelThresholds[level]
	}
	return level, levelThresholds[len(levelThresholds)-1]
}
