package source

// Defaults returns the built-in outlet table.
func Defaults() []Source {
	return []Source{
		{
			ID:   "bbc",
			Name: "BBC News",
			Feeds: []string{
				"https://feeds.bbci.co.uk/news/rss.xml",
				"https://feeds.bbci.co.uk/news/world/rss.xml",
				"https://feeds.bbci.co.uk/news/world/us_and_canada/rss.xml",
			},
			AltFeeds: []string{"https://feeds.bbci.co.uk/news/rss.xml"},
			Selectors: []string{
				`div[data-component="text-block"]`,
				".story-body__inner p",
				`[data-component="text-block"] p`,
				"article p",
				".gel-body-copy",
			},
			Search: Search{
				URL:    "https://www.bbc.com/search?q={query}",
				Domain: "bbc.com",
			},
		},
		{
			ID:   "npr",
			Name: "NPR",
			Feeds: []string{
				"https://feeds.npr.org/1001/rss.xml",
				"https://feeds.npr.org/1003/rss.xml",
				"https://feeds.npr.org/1004/rss.xml",
			},
			AltFeeds: []string{
				"https://feeds.npr.org/1002/rss.xml",
				"https://feeds.npr.org/500005/rss.xml",
			},
			Selectors: []string{
				".storytext p",
				"#storytext p",
				".transcript p",
				"article p",
				".story-text p",
			},
			Search: Search{
				URL:     "https://www.npr.org/search?query={query}&page=1",
				Domain:  "npr.org",
				Title:   "h1 a, h2 a, h3 a, h4 a, h5 a, h6 a",
				Summary: `p[class*="teaser"]`,
			},
		},
		{
			ID:   "nytimes",
			Name: "The New York Times",
			Feeds: []string{
				"https://rss.nytimes.com/services/xml/rss/nyt/HomePage.xml",
				"https://rss.nytimes.com/services/xml/rss/nyt/US.xml",
				"https://rss.nytimes.com/services/xml/rss/nyt/World.xml",
			},
			AltFeeds: []string{
				"https://rss.nytimes.com/services/xml/rss/nyt/HomePage.xml",
				"https://rss.nytimes.com/services/xml/rss/nyt/TopStories.xml",
			},
			Selectors: []string{
				".StoryBodyCompanionColumn p",
				".css-53u6y8 p",
				`section[name="articleBody"] p`,
				"article p",
				".story-content p",
			},
			Search: Search{
				URL:    "https://www.nytimes.com/search?query={query}",
				Domain: "nytimes.com",
				Item:   "li[data-testid=\"search-bodega-result\"], article",
			},
		},
		{
			ID:   "nbcnews",
			Name: "NBC News",
			Feeds: []string{
				"https://feeds.nbcnews.com/nbcnews/public/news",
				"https://feeds.nbcnews.com/nbcnews/public/politics",
				"https://feeds.nbcnews.com/nbcnews/public/world",
			},
			AltFeeds: []string{"https://feeds.nbcnews.com/nbcnews/public/news"},
			Selectors: []string{
				".ArticleBody-articleBody p",
				".InlineVideo-container ~ p",
				"article p",
				".story-text p",
			},
			Search: Search{
				URL:    "https://www.nbcnews.com/search/?q={query}",
				Domain: "nbcnews.com",
			},
		},
		{
			ID:   "foxnews",
			Name: "Fox News",
			Feeds: []string{
				"https://moxie.foxnews.com/google-publisher/latest.xml",
				"https://moxie.foxnews.com/google-publisher/politics.xml",
				"https://moxie.foxnews.com/google-publisher/world.xml",
			},
			AltFeeds: []string{"https://moxie.foxnews.com/google-publisher/latest.xml"},
			Selectors: []string{
				".article-body p",
				".article-text p",
				"article p",
				".story-content p",
			},
			Search: Search{
				URL:    "https://www.foxnews.com/search-results/search?q={query}",
				Domain: "foxnews.com",
			},
		},
	}
}

// GenericSelectors apply to outlets without their own list.
var GenericSelectors = []string{"article p", ".content p", ".story p", "p"}
