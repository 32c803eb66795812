package crawl

// item is one pending fetch: the URL to visit and the page that discovered
// it, forwarded as the Referer header.
type item struct {
	url     string
	referer string
}

// frontier pairs the FIFO pending queue with the visited set. It is owned by
// a single DeepCrawl invocation and discarded when the crawl ends.
type frontier struct {
	queue   []item
	visited map[string]struct{}
}

func newFrontier() *frontier {
	return &frontier{visited: make(map[string]struct{})}
}

func (f *frontier) push(url, referer string) {
	f.queue = append(f.queue, item{url: url, referer: referer})
}

func (f *frontier) pop() (item, bool) {
	if len(f.queue) == 0 {
		return item{}, false
	}
	next := f.queue[0]
	f.queue = f.queue[1:]
	return next, true
}

func (f *frontier) pending() int {
	return len(f.queue)
}

// markIfNew records the URL as visited, returning false when it was already
// seen. Cycles are broken here.
func (f *frontier) markIfNew(url string) bool {
	if _, seen := f.visited[url]; seen {
		return false
	}
	f.visited[url] = struct{}{}
	return true
}

func (f *frontier) isVisited(url string) bool {
	_, seen := f.visited[url]
	return seen
}

func (f *frontier) visitedCount() int {
	return len(f.visited)
}
