package config

import "github.com/Sumatoshi-tech/traction/internal/sources"

// Targets flattens the per-source entity lists into fetch targets, in
// stable order: pypi, npm, github, discord. Discord guilds use their
// configured name as the dataset entity, falling back to the raw id.
func (c *Config) Targets() []sources.Target {
	targets := make([]sources.Target, 0,
		len(c.PyPI.Packages)+len(c.NPM.Packages)+len(c.GitHub.Selectors)+len(c.Discord.Guilds))

	for _, pkg := range c.PyPI.Packages {
		targets = append(targets, sources.Target{Kind: sources.KindPyPI, Selector: pkg})
	}

	for _, pkg := range c.NPM.Packages {
		targets = append(targets, sources.Target{Kind: sources.KindNPM, Selector: pkg})
	}

	for _, selector := range c.GitHub.Selectors {
		targets = append(targets, sources.Target{Kind: sources.KindGitHub, Selector: selector})
	}

	for _, guild := range c.Discord.Guilds {
		targets = append(targets, sources.Target{
			Kind:     sources.KindDiscord,
			Selector: guild.ID,
			Alias:    guild.Name,
		})
	}

	return targets
}
