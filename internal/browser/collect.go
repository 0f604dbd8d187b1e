package browser

// snapshotScript flattens the rendered document into the dom.Snapshot JSON
// shape. Elements are emitted in document order so parents precede their
// children. Focus outlines are read by focusing each focusable element in
// turn; the originally focused element is restored afterwards.
const snapshotScript = `(() => {
  const SKIP = new Set(['script', 'style', 'link', 'meta', 'noscript', 'template', 'base']);
  const FOCUSABLE = 'a[href], area[href], button, input, select, textarea, summary, iframe, [tabindex], [contenteditable=""], [contenteditable="true"]';

  const visible = (el, s) => {
    if (s.display === 'none' || s.visibility === 'hidden' || s.visibility === 'collapse') return false;
    if (parseFloat(s.opacity) === 0) return false;
    const r = el.getBoundingClientRect();
    return r.width > 0 && r.height > 0;
  };

  const stacking = (s, ps) => {
    if (s.position === 'fixed' || s.position === 'sticky') return true;
    if (s.position !== 'static' && s.zIndex !== 'auto') return true;
    if (ps && /(^|-)(flex|grid)$/.test(ps.display) && s.zIndex !== 'auto') return true;
    if (parseFloat(s.opacity) < 1) return true;
    if (s.transform !== 'none' || s.filter !== 'none' || s.perspective !== 'none') return true;
    if (s.mixBlendMode !== 'normal' || s.isolation === 'isolate') return true;
    if (s.clipPath && s.clipPath !== 'none') return true;
    if (/transform|opacity|filter|z-index/.test(s.willChange)) return true;
    if (/paint|layout|strict|content/.test(s.contain)) return true;
    return false;
  };

  const clip = (v, n) => (v && v.length > n ? v.slice(0, n) : v || '');

  const index = new Map();
  const styles = new Map();
  const out = [];
  const active = document.activeElement;

  for (const el of document.querySelectorAll('*')) {
    const tag = el.tagName.toLowerCase();
    if (SKIP.has(tag)) continue;
    const parentEl = el.parentElement;
    let parent = -1;
    if (parentEl) {
      if (!index.has(parentEl)) continue;
      parent = index.get(parentEl);
    }

    let pos = 1;
    for (let sib = el.previousElementSibling; sib; sib = sib.previousElementSibling) {
      if (sib.tagName === el.tagName) pos++;
    }
    const xpath = parent < 0 ? '/' + tag : out[parent].xpath + '/' + tag + '[' + pos + ']';

    const s = getComputedStyle(el);
    styles.set(el, s);
    const r = el.getBoundingClientRect();
    const attrs = {};
    for (const a of el.attributes) attrs[a.name] = clip(a.value, 200);

    const rec = {
      index: out.length,
      parent: parent,
      tag: tag,
      attrs: attrs,
      text: clip((el.innerText !== undefined ? el.innerText : el.textContent || '').replace(/\s+/g, ' ').trim(), 500),
      xpath: xpath,
      html: clip(el.outerHTML, 300),
      visible: visible(el, s),
      focusable: el.matches(FOCUSABLE) && !el.disabled && el.tabIndex >= 0 && !(tag === 'input' && el.type === 'hidden'),
      rect: { x: r.left + window.scrollX, y: r.top + window.scrollY, width: r.width, height: r.height },
      font_size: s.fontSize,
      font_weight: s.fontWeight,
      color: s.color,
      background: { color: s.backgroundColor, image: s.backgroundImage },
      stacking_context: parent >= 0 && stacking(s, parentEl ? styles.get(parentEl) : null),
    };
    index.set(el, rec.index);
    out.push(rec);

    if (rec.focusable && rec.visible) {
      el.focus({ preventScroll: true });
      const fs = getComputedStyle(el);
      rec.focus = { width: fs.outlineWidth, style: fs.outlineStyle, color: fs.outlineColor, offset: fs.outlineOffset };
      el.blur();
    }
  }

  if (active && active.focus) active.focus({ preventScroll: true });

  return JSON.stringify({
    url: location.href,
    title: document.title,
    lang: document.documentElement.lang || '',
    root_font_size: getComputedStyle(document.documentElement).fontSize,
    elements: out,
  });
})()`

// visibleScript reports whether the first match of a selector is rendered.
const visibleScript = `((sel) => {
  const el = document.querySelector(sel);
  if (!el) return false;
  const s = getComputedStyle(el);
  if (s.display === 'none' || s.visibility === 'hidden' || s.visibility === 'collapse') return false;
  if (parseFloat(s.opacity) === 0) return false;
  const r = el.getBoundingClientRect();
  return r.width > 0 && r.height > 0;
})(%s)`

// textScript returns the collapsed text of a selector's first match, or the body.
const textScript = `((sel) => {
  const el = sel ? document.querySelector(sel) : document.body;
  if (!el) return '';
  return (el.innerText || el.textContent || '').replace(/\s+/g, ' ').trim();
})(%s)`

// selectScript sets a select element's value and fires the events a user
// change would fire.
const selectScript = `((sel, val) => {
  const el = document.querySelector(sel);
  if (!el) return false;
  el.value = val;
  el.dispatchEvent(new Event('input', { bubbles: true }));
  el.dispatchEvent(new Event('change', { bubbles: true }));
  return el.value === val;
})(%s, %s)`
