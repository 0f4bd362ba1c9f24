package chrome

// DOM preparation scripts run after navigation and before any PDF export.
// They declutter the article page the same way for every variant: the page
// is loaded and prepared once, then exported once per requested variant.

// scrollToBottomScript scrolls the page down in steps to trigger lazy-loaded
// images, then returns to the top. Resolves once the bottom is reached.
const scrollToBottomScript = `
new Promise((resolve) => {
	const step = 200;
	const interval = 100;
	let current = 0;
	const timer = setInterval(() => {
		if (current > document.body.scrollHeight) {
			clearInterval(timer);
			window.scrollTo(0, 0);
			resolve(true);
			return;
		}
		current += step;
		window.scrollBy(0, step);
	}, interval);
})`

// removeChromeScript hides page furniture that has no place in a PDF.
const removeChromeScript = `(() => {
	const selectors = ['nav', 'aside', 'footer', 'iframe'];
	for (const selector of selectors) {
		for (const node of document.querySelectorAll(selector)) {
			node.style.display = 'none';
		}
	}
	return true;
})()`

// removeTopBannerScript removes the app-install banner some publishers pin
// above the article body.
const removeTopBannerScript = `(() => {
	const banner = document.querySelector('.branch-journeys-top');
	if (banner) {
		let parent = banner.parentElement;
		while (parent) {
			if (parent.parentElement === document.body) {
				break;
			}
			parent = parent.parentElement;
		}
		if (parent) {
			document.body.removeChild(parent);
		}
	}
	return true;
})()`

// removeMeteredBannerScript removes the "stories left this month" metered
// paywall banner when present inside the article.
const removeMeteredBannerScript = `(() => {
	const banner = document.querySelector('article h4>span');
	if (banner && banner.textContent.includes('stories left this month.')) {
		let parent = banner.parentElement;
		while (parent) {
			if (parent.parentElement.nodeName === 'ARTICLE') {
				break;
			}
			parent = parent.parentElement;
		}
		if (parent && parent.parentElement) {
			parent.parentElement.removeChild(parent);
		}
	}
	return true;
})()`

// neutralizeLinksScript hides Follow buttons and strips hrefs that would
// open in the same tab, so the PDF carries no dead navigation.
const neutralizeLinksScript = `(() => {
	const links = document.querySelectorAll('a, button');
	for (const link of links) {
		if (link.textContent.includes('Follow')) {
			link.style.display = 'none';
		}
		if (link.getAttribute('target') !== '_blank') {
			link.removeAttribute('href');
		}
	}
	return true;
})()`

// suppressPageBreaksScript injects CSS keeping headings and figures together
// across page boundaries. Only applied for the paginated attachment layout;
// the inline layout prints as one continuous flow.
const suppressPageBreaksScript = `(() => {
	const style = document.createElement('style');
	style.innerHTML = ` + "`" + `
		h1, h2 {
			page-break-inside: avoid;
		}
		h1::after, h2::after {
			content: '';
			display: block;
			height: 100px;
			margin-bottom: -100px;
		}
		.paragraph-image, figure {
			page-break-inside: avoid;
			page-break-before: auto;
			page-break-after: auto;
		}
	` + "`" + `;
	document.head.appendChild(style);
	return true;
})()`

// prepareScripts are applied in order after navigation.
var prepareScripts = []string{
	removeChromeScript,
	removeTopBannerScript,
	removeMeteredBannerScript,
	neutralizeLinksScript,
}
